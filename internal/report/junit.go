package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"

	"github.com/mergelens/pkg/models"
)

// JUnit shape: one testcase per reviewed file, passing when the file
// carries no high-severity findings. High-severity findings become
// failures so CI gates can key on them.
type junitSuite struct {
	XMLName  xml.Name    `xml:"testsuite"`
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

func writeJUnit(path string, data Data) error {
	// One case per reviewed file, plus files that only appear via
	// findings (e.g. the secret scan covering files the model skipped).
	highByFile := map[string][]models.Finding{}
	names := append([]string(nil), data.ReviewedFiles...)
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	for _, f := range data.Findings {
		if !seen[f.File] {
			seen[f.File] = true
			names = append(names, f.File)
		}
		if f.Severity == models.SeverityHigh {
			highByFile[f.File] = append(highByFile[f.File], f)
		}
	}
	sort.Strings(names)

	suite := junitSuite{Name: "ai-code-review"}
	for _, name := range names {
		tc := junitCase{Name: name, ClassName: "ai-code-review"}
		if high := highByFile[name]; len(high) > 0 {
			body := ""
			for _, f := range high {
				body += fmt.Sprintf("line %d: %s\n", f.Line, f.Message)
			}
			tc.Failure = &junitFailure{
				Message: fmt.Sprintf("%d high severity finding(s)", len(high)),
				Body:    body,
			}
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
	}

	if len(suite.Cases) == 0 {
		suite.Cases = append(suite.Cases, junitCase{Name: "review", ClassName: "ai-code-review"})
	}
	suite.Tests = len(suite.Cases)

	buf, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding junit report: %w", err)
	}
	buf = append([]byte(xml.Header), buf...)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
