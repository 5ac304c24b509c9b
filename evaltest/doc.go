// Package evaltest runs pillar evaluations as standard Go tests.
//
// A Harness wraps *testing.T and holds the shared configuration (config,
// profile, judge provider). Each case runs as a subtest via Harness.Run and
// receives a TestCase on which the four worker collaborators are scripted,
// the evaluation is executed and the resulting run record is asserted.
//
// Example usage:
//
//	func TestLeakyRepo(t *testing.T) {
//	    h := evaltest.New(t, evaltest.WithProfile("highstakes"))
//	    h.Run("two-secrets", func(tc *evaltest.TestCase) {
//	        tc.MockSecrets(
//	            worker.SecretFinding{Pattern: "aws_access_key", File: "config.py"},
//	            worker.SecretFinding{Pattern: "generic_secret", File: "settings.py"},
//	        )
//	        tc.MockStructure(worker.Structure{Languages: []string{"python"}, FileCount: 33})
//	        tc.MockDocs(worker.DocStats{SectionCount: 5, WordCount: 300})
//	        tc.Evaluate()
//	        tc.AssertDecision(verdict.DecisionFail)
//	        tc.AssertVetoedBy(pillar.Security)
//	        tc.AssertAdjusted(pillar.Fidelity)
//	    })
//	}
package evaltest
