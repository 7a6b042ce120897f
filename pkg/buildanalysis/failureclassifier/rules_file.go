package failureclassifier

import (
	"fmt"
	"os"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/openshift/jenkins-build-analyzer/pkg/results"
)

// RulesFile is the format of user supplied rules. The rules are evaluated
// after the built-in table, in file order.
type RulesFile struct {
	Rules []Rule `json:"rules"`
}

// ParseRules decodes a YAML or JSON rules document.
func ParseRules(data []byte) ([]Rule, error) {
	file := RulesFile{}
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, results.ForReason(results.ReasonLoadingRules).WithError(err).Errorf("failed to unmarshal rules: %v", err)
	}
	var errs []error
	for i, rule := range file.Rules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, results.ForReason(results.ReasonLoadingRules).WithError(err).Errorf("invalid rules: %v", err)
	}
	return file.Rules, nil
}

// LoadRules reads rules from a file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, results.ForReason(results.ReasonLoadingRules).WithError(err).Errorf("failed to read rules file %s: %v", path, err)
	}
	return ParseRules(data)
}
