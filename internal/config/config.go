// Package config loads daemon configuration from an optional YAML file and
// merges it with command-line flags, flags taking precedence over the file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kifreason/kifreason/pkg/reasoner"
)

// File mirrors reasoner.Config in YAML form. Fields are pointers so that
// "unset" is distinguishable from the YAML zero value when merging over
// flag defaults.
type File struct {
	Port                 *int     `yaml:"port"`
	KBSize               *int     `yaml:"kb_size"`
	RulesFile            *string  `yaml:"rules_file"`
	LLMURL               *string  `yaml:"llm_url"`
	LLMModel             *string  `yaml:"llm_model"`
	BroadcastInput       *bool    `yaml:"broadcast_input"`
	MaxDerivationDepth   *int     `yaml:"max_derivation_depth"`
	MaxBackwardDepth     *int     `yaml:"max_backward_depth"`
	MaxDerivedWeight     *int     `yaml:"max_derived_weight"`
	DerivedPriorityDecay *float64 `yaml:"derived_priority_decay"`
	KBWarnPct            *int     `yaml:"kb_warn_pct"`
	KBHaltPct            *int     `yaml:"kb_halt_pct"`
}

// LoadFile reads and parses a YAML config file. A missing path is not an
// error: it returns a zero File so flags/defaults apply unmodified.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, errors.Wrapf(err, "reading config file %q", path)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, errors.Wrapf(err, "parsing config file %q", path)
	}
	return f, nil
}

// Resolve builds a reasoner.Config starting from reasoner.DefaultConfig(),
// applying the file's values first and then any flags explicitly set by
// the user on flags (flags overlay the file, the same precedence aretext's
// MergeRecursive gives an overlay over a base).
func Resolve(flags *pflag.FlagSet, file File) reasoner.Config {
	cfg := reasoner.DefaultConfig()

	applyFile(&cfg, file)
	applyFlags(&cfg, flags)

	return cfg
}

func applyFile(cfg *reasoner.Config, f File) {
	if f.Port != nil {
		cfg.Port = *f.Port
	}
	if f.KBSize != nil {
		cfg.KBSize = *f.KBSize
	}
	if f.RulesFile != nil {
		cfg.RulesFile = *f.RulesFile
	}
	if f.LLMURL != nil {
		cfg.LLMURL = *f.LLMURL
	}
	if f.LLMModel != nil {
		cfg.LLMModel = *f.LLMModel
	}
	if f.BroadcastInput != nil {
		cfg.BroadcastInput = *f.BroadcastInput
	}
	if f.MaxDerivationDepth != nil {
		cfg.MaxDerivationDepth = *f.MaxDerivationDepth
	}
	if f.MaxBackwardDepth != nil {
		cfg.MaxBackwardDepth = *f.MaxBackwardDepth
	}
	if f.MaxDerivedWeight != nil {
		cfg.MaxDerivedWeight = *f.MaxDerivedWeight
	}
	if f.DerivedPriorityDecay != nil {
		cfg.DerivedPriorityDecay = *f.DerivedPriorityDecay
	}
	if f.KBWarnPct != nil {
		cfg.KBWarnPct = *f.KBWarnPct
	}
	if f.KBHaltPct != nil {
		cfg.KBHaltPct = *f.KBHaltPct
	}
}

// applyFlags overlays only the flags the user actually set (pflag.Changed),
// so an un-set flag never clobbers a value already supplied by the file.
func applyFlags(cfg *reasoner.Config, flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	intIf := func(name string, dst *int) {
		if flags.Changed(name) {
			if v, err := flags.GetInt(name); err == nil {
				*dst = v
			}
		}
	}
	stringIf := func(name string, dst *string) {
		if flags.Changed(name) {
			if v, err := flags.GetString(name); err == nil {
				*dst = v
			}
		}
	}
	boolIf := func(name string, dst *bool) {
		if flags.Changed(name) {
			if v, err := flags.GetBool(name); err == nil {
				*dst = v
			}
		}
	}
	float64If := func(name string, dst *float64) {
		if flags.Changed(name) {
			if v, err := flags.GetFloat64(name); err == nil {
				*dst = v
			}
		}
	}

	intIf("port", &cfg.Port)
	intIf("kb-size", &cfg.KBSize)
	stringIf("rules", &cfg.RulesFile)
	stringIf("llm-url", &cfg.LLMURL)
	stringIf("llm-model", &cfg.LLMModel)
	boolIf("broadcast-input", &cfg.BroadcastInput)
	intIf("max-derivation-depth", &cfg.MaxDerivationDepth)
	intIf("max-backward-depth", &cfg.MaxBackwardDepth)
	intIf("max-derived-weight", &cfg.MaxDerivedWeight)
	float64If("derived-priority-decay", &cfg.DerivedPriorityDecay)
	intIf("kb-warn-pct", &cfg.KBWarnPct)
	intIf("kb-halt-pct", &cfg.KBHaltPct)
}
