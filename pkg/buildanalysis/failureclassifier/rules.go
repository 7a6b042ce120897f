package failureclassifier

import (
	"errors"
	"fmt"
	"strings"
)

// Labels that are assigned outside of, or shared by, the rule table.
const (
	LabelFailedTest = "Failed Test"
	LabelMissingLog = "Missing log"
	LabelUnknown    = "Unknown"
)

// Rule assigns Label to a console log when every configured predicate holds.
// All comparisons are case-sensitive substring checks.
type Rule struct {
	Label string `json:"label"`
	// LogContainsAny holds if the log contains at least one of the strings.
	LogContainsAny []string `json:"logContainsAny,omitempty"`
	// LogContainsAll holds if the log contains every one of the strings.
	LogContainsAll []string `json:"logContainsAll,omitempty"`
	// PathContains restricts the rule to logs stored below a matching path.
	PathContains string `json:"pathContains,omitempty"`
}

// Matches evaluates the rule against a log and the location it was read from.
func (r Rule) Matches(log, path string) bool {
	if r.PathContains != "" && !strings.Contains(path, r.PathContains) {
		return false
	}
	if len(r.LogContainsAny) > 0 {
		found := false
		for _, s := range r.LogContainsAny {
			if strings.Contains(log, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, s := range r.LogContainsAll {
		if !strings.Contains(log, s) {
			return false
		}
	}
	return true
}

// Validate rejects rules that can never be told apart from a catch-all.
func (r Rule) Validate() error {
	if r.Label == "" {
		return errors.New("rule has no label")
	}
	if len(r.LogContainsAny) == 0 && len(r.LogContainsAll) == 0 {
		return fmt.Errorf("rule %q has no log predicate", r.Label)
	}
	for _, s := range append(append([]string{}, r.LogContainsAny...), r.LogContainsAll...) {
		if s == "" {
			return fmt.Errorf("rule %q has an empty log predicate", r.Label)
		}
	}
	return nil
}

// defaultRules is evaluated top to bottom and the first match wins, so rare
// and specific signatures have to stay above broad ones. New rules are only
// ever appended or inserted above the final catch-all. Entries marked
// "(fixed)" refer to resolved issues and stay so that old logs are still
// labelled the same way.
var defaultRules = []Rule{
	{
		Label:          "[FLOC-3725] NullPointerException",
		LogContainsAny: []string{"NullPointerException"},
	},
	{
		Label: "[FLOC-?] PyPI down",
		LogContainsAny: []string{
			"No matching distribution found for argparse==1.3.0",
			"pkg_resources.DistributionNotFound: The 'docutils>=0.10'",
		},
	},
	{
		Label:          "[FLOC-?] Build timeout",
		LogContainsAny: []string{"Build timed out"},
	},
	{
		Label:          "[FLOC-?(fixed)] testtools==1.8.2chq1 unavailable",
		LogContainsAny: []string{"No matching distribution found for testtools==1.8.2chq1"},
	},
	{
		Label:          "[FLOC-?] Slave went offline during the build",
		LogContainsAny: []string{"Slave went offline during the build"},
	},
	{
		Label:          "[FLOC-3681(fixed)] removeObserver on observer not in list",
		LogContainsAny: []string{"stderr:ValueError: list.remove(x): x not in list"},
	},
	{
		Label:          "[FLOC-?] FATAL: Command 'git clean -fdx' returned status code 1",
		LogContainsAny: []string{`FATAL: Command "git clean -fdx" returned status code 1:`},
	},
	{
		Label: "[FLOC-?] Jenkins slave communication failure",
		LogContainsAny: []string{
			"hudson.remoting.RequestAbortedException",
			"org.jenkinsci.lib.envinject.EnvInjectException",
			"java.lang.IllegalStateException",
		},
	},
	{
		Label:          "[FLOC-?] broken link in docs",
		PathContains:   "run_sphinx",
		LogContainsAny: []string{" broken "},
	},
	{
		Label:          "[FLOC-?] virtualbox failure",
		LogContainsAny: []string{"Connection to 127.0.0.1 closed by remote host."},
	},
	{
		Label:          LabelFailedTest,
		PathContains:   "acceptance",
		LogContainsAny: []string{"FAILED ("},
	},
	{
		Label:          "[FLOC-?] apt download failure",
		LogContainsAny: []string{"E: Some index files failed to download."},
	},
	{
		Label:          "[FLOC-?] failed to get availability zone info",
		LogContainsAny: []string{"FLOCKER_FUNCTIONAL_TEST_AWS_AVAILABILITY_ZONE=\nBuild step 'Execute shell' marked build as failure"},
	},
	{
		Label:          "Lint failures",
		LogContainsAny: []string{"ERROR:   lint: commands failed"},
	},
	{
		Label:          "[FLOC-?] failure download virtualbox box",
		LogContainsAny: []string{"The box failed to unpackage properly."},
	},
	{
		Label:          "[FLOC-?] docker daemon not running",
		LogContainsAny: []string{"Cannot connect to the Docker daemon. Is the docker daemon running on this host?"},
	},
	{
		Label: "[FLOC-?] RequestLimitExceeded",
		LogContainsAll: []string{
			"boto.exception.BotoServerError: BotoServerError: 503 Service Unavailable",
			"RequestLimitExceeded",
		},
	},
	{
		Label:          "[FLOC-?] rackspace node failed to start in time",
		LogContainsAll: []string{"LoopExceeded", "create_node", "rackspace"},
	},
	{
		Label:          "[FLOC-?] failed to get key from keyserver",
		LogContainsAny: []string{"gpg: keyserver receive failed: keyserver error"},
	},
	{
		Label:          "[FLOC-?] failed to find key on keyserver",
		LogContainsAny: []string{"gpgkeys: key 58118E89F3A912897C070ADBF76221572C52609D not found on keyserver"},
	},
	{
		Label: "[FLOC-?] upload or network failure",
		LogContainsAny: []string{
			"ERROR: Failed to upload",
			"curl: (56) Recv failure: Connection reset by peer",
		},
	},
	// Overly broad. Test failures that neither produced a test report nor the
	// trial failure summary end up here because the output is subunit.
	{
		Label:          LabelFailedTest,
		LogContainsAny: []string{"\nerror: flocker."},
	},
}

// DefaultRules returns a copy of the built-in rule table in priority order.
func DefaultRules() []Rule {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}
