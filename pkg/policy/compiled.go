package policy

// CompiledRule pairs a stored rule with its validated configuration.
// ConfigErr is set when the configuration was rejected; such rules are
// never evaluated as violations.
type CompiledRule struct {
	PolicyRule
	Config    RuleConfig
	ConfigErr error
}

// CompileRule validates the rule's configuration document once.
func CompileRule(r PolicyRule) *CompiledRule {
	cr := &CompiledRule{PolicyRule: r}
	if !r.Action.Valid() {
		cr.ConfigErr = &ConfigError{RuleType: r.RuleType, Field: "action", Message: "unknown action " + string(r.Action)}
		return cr
	}
	cfg, err := ParseRuleConfig(r.RuleType, r.Config)
	if err != nil {
		cr.ConfigErr = err
		return cr
	}
	cr.Config = cfg
	return cr
}
