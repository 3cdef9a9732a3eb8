package rules

// Rule categories used by the bundled sets.
const (
	CategoryDestructiveFS  = "destructive_filesystem"
	CategorySystemControl  = "system_control"
	CategoryDeviceWrite    = "device_write"
	CategoryPermissions    = "permissions"
	CategoryForkBomb       = "fork_bomb"
	CategoryModuleMissing  = "module_missing"
	CategorySyntaxError    = "syntax_error"
	CategoryTypeError      = "type_error"
	CategoryTestFailure    = "test_failure"
	CategoryBuildFailure   = "build_failure"
	CategoryPanicCrash     = "panic_crash"
	CategoryPermDenied     = "permission_denied"
	CategoryNetworkFailure = "network_failure"
	CategoryOOM            = "out_of_memory"
	CategoryGenericError   = "generic_error"
)

// Reason codes reported with gate decisions.
const (
	ReasonDangerousPattern = "dangerous_pattern"
	ReasonRepeatOffense    = "repeat_offense"
	ReasonTimeout          = "timeout"
	ReasonDefaultAllow     = "default_allow"
	ReasonFlagged          = "flagged"
)

// DefaultCommandRules is the bundled dangerous-command set. Callers may extend
// or replace it via dangerousCommandPatterns in config; evaluation is ordered,
// first match wins.
func DefaultCommandRules() []PatternRule {
	return []PatternRule{
		{ID: "rm_root", Signature: `\brm\s+(-[a-zA-Z]+\s+)*[/~]`, Category: CategoryDestructiveFS, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "rm_rf", Signature: `\brm\s+-[rR]f?\b|\brm\s+-f[rR]\b`, Category: CategoryDestructiveFS, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "rm_glob", Signature: `\brm\s+(-[a-zA-Z]+\s+)*\*`, Category: CategoryDestructiveFS, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "git_clean", Signature: `\bgit\s+clean\s+-[a-zA-Z]*f`, Category: CategoryDestructiveFS, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "git_reset_hard", Signature: `\bgit\s+reset\s+--hard\b`, Category: CategoryDestructiveFS, Severity: SeverityHigh, Action: ActionFlag},
		{ID: "find_delete", Signature: `\bfind\b.*\s-delete\b`, Category: CategoryDestructiveFS, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "dd_device", Signature: `\bdd\b.*\bof=/dev/`, Category: CategoryDeviceWrite, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "mkfs", Signature: `\bmkfs\b`, Category: CategoryDeviceWrite, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "redirect_device", Signature: `>\s*/dev/(sd|nvme|hd)`, Category: CategoryDeviceWrite, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "chmod_777", Signature: `\bchmod\s+(-R\s+)?777\b`, Category: CategoryPermissions, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "chown_root", Signature: `\bchown\s+-R\b.*[/~]`, Category: CategoryPermissions, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "fork_bomb", Signature: `:\(\)\s*{\s*:\|:&\s*}\s*;\s*:`, Category: CategoryForkBomb, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "shutdown", Signature: `\b(shutdown|reboot|halt|poweroff)\b`, Category: CategorySystemControl, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "init_level", Signature: `\binit\s+[0-6]\b`, Category: CategorySystemControl, Severity: SeverityCritical, Action: ActionDeny},
		{ID: "systemctl", Signature: `\bsystemctl\s+(start|stop|restart|enable|disable)\b`, Category: CategorySystemControl, Severity: SeverityHigh, Action: ActionDeny},
		{ID: "kill_all", Signature: `\bkillall\b|\bpkill\s+-9\b`, Category: CategorySystemControl, Severity: SeverityHigh, Action: ActionFlag},
		{ID: "curl_pipe_sh", Signature: `\b(curl|wget)\b.*\|\s*(ba|z|da)?sh\b`, Category: CategorySystemControl, Severity: SeverityHigh, Action: ActionDeny},
	}
}

// DefaultErrorRules is the bundled error-signature set the watchdog and the
// fallback classifier run against transcript lines.
func DefaultErrorRules() []PatternRule {
	return []PatternRule{
		{ID: "py_module_missing", Signature: `ModuleNotFoundError|ImportError: No module named`, Category: CategoryModuleMissing, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "py_syntax", Signature: `SyntaxError:|IndentationError:`, Category: CategorySyntaxError, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "py_type", Signature: `TypeError:|AttributeError:`, Category: CategoryTypeError, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "py_traceback", Signature: `Traceback \(most recent call last\)`, Category: CategoryPanicCrash, Severity: SeverityHigh, Action: ActionFlag},
		{ID: "go_panic", Signature: `^panic: |runtime error:`, Category: CategoryPanicCrash, Severity: SeverityHigh, Action: ActionFlag},
		{ID: "go_build", Signature: `(^|\s)# .+\n?.*(undefined:|cannot use|undeclared name)|\bbuild failed\b`, Category: CategoryBuildFailure, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "test_failure", Signature: `^--- FAIL:|^FAIL\b|\bAssertionError\b|\d+ (test[s]?|spec[s]?) failed`, Category: CategoryTestFailure, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "perm_denied", Signature: `(?i)permission denied|EACCES`, Category: CategoryPermDenied, Severity: SeverityMedium, Action: ActionFlag},
		{ID: "net_failure", Signature: `(?i)connection refused|connection reset|no such host|ETIMEDOUT`, Category: CategoryNetworkFailure, Severity: SeverityLow, Action: ActionFlag},
		{ID: "oom", Signature: `(?i)out of memory|cannot allocate memory|OOMKilled`, Category: CategoryOOM, Severity: SeverityCritical, Action: ActionFlag},
		{ID: "generic_error", Signature: `(?i)^error[: ]|^fatal[: ]`, Category: CategoryGenericError, Severity: SeverityLow, Action: ActionFlag},
	}
}
