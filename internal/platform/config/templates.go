package config

import (
	"fmt"

	"github.com/spf13/viper"

	"kpiconsole/internal/domain/kpi"
)

// LoadTemplates returns the default metric templates with any role templates
// from a YAML file laid over them:
//
//	templates:
//	  employee:
//	    - {id: responseTime, label: Response Time, unit: ms, weight: 40, target: 300, inverse: true}
//
// The result is validated before it is returned.
func LoadTemplates(path string) (kpi.Templates, error) {
	templates := kpi.DefaultTemplates()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read templates file: %w", err)
		}
		var raw struct {
			Templates map[string][]kpi.MetricDef `mapstructure:"templates"`
		}
		if err := v.Unmarshal(&raw); err != nil {
			return nil, fmt.Errorf("decode templates file: %w", err)
		}
		overrides := kpi.Templates{}
		for name, defs := range raw.Templates {
			role, err := kpi.ParseRole(name)
			if err != nil {
				return nil, fmt.Errorf("templates file: %w", err)
			}
			overrides[role] = defs
		}
		templates = templates.Merge(overrides)
	}
	if err := templates.Validate(); err != nil {
		return nil, err
	}
	return templates, nil
}
