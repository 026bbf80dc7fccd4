package service

import (
	"bytes"
	"strings"

	"tcees-validator/internal/domain"

	"golang.org/x/net/html"
)

// resultsContainerID holds the indicator row on the portal results page
const resultsContainerID = "validacoes-arquivo"

// cellClass marks one indicator cell
const cellClass = "d-inline-block"

// minResolvedStatuses is how many indicators must be known for a read to count
const minResolvedStatuses = 6

// statusSelectors are tried in order against the live page
var statusSelectors = []string{
	"#validacoes-arquivo div.row.text-center div.d-inline-block",
	"#validacoes-arquivo div.d-inline-block",
	"#validacoes-body #validacoes-arquivo div.d-inline-block",
}

var (
	successMarkers = []string{
		"fa-check",
		"text-success",
		`title="ok"`,
	}
	failureMarkers = []string{
		"fa-close",
		"fa-times",
		"text-danger",
		"nao assinado",
		"não assinado",
		"invalido",
		"inválido",
		"erro",
	}
	notSignedMarkers = []string{
		"nao assinado",
		"não assinado",
	}
)

// StatusFromCellHTML classifies the markup of one indicator cell.
// A cell carrying both success and failure markers is a failure.
func StatusFromCellHTML(cellHTML string) domain.CheckStatus {
	lower := strings.ToLower(cellHTML)

	isSuccess := containsAny(lower, successMarkers)
	isFailure := containsAny(lower, failureMarkers)

	switch {
	case isFailure:
		return domain.StatusFailed
	case isSuccess:
		return domain.StatusPassed
	default:
		return domain.StatusUnknown
	}
}

// ClassifyCells classifies the first CheckCount cells, or returns nil when there are fewer
func ClassifyCells(cells []string) domain.Statuses {
	if len(cells) < domain.CheckCount {
		return nil
	}
	statuses := make(domain.Statuses, domain.CheckCount)
	for i, cell := range cells[:domain.CheckCount] {
		statuses[i] = StatusFromCellHTML(cell)
	}
	return statuses
}

// ExtractStatusesFromHTML reads the indicators from a full page dump.
// It is the last resort when the live DOM could not be queried.
func ExtractStatusesFromHTML(pageHTML string) domain.Statuses {
	if pageHTML == "" {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	container := findByID(doc, resultsContainerID)
	if container == nil {
		return nil
	}

	var cells []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "div" && hasClass(c, cellClass) {
				cells = append(cells, innerHTML(c))
				continue
			}
			walk(c)
		}
	}
	walk(container)

	return ClassifyCells(cells)
}

// ApplyStatuses copies a read of the portal indicators onto the result.
// It reports false when the read has too few indicators to be used.
func ApplyStatuses(result *domain.ValidationResult, statuses domain.Statuses, pageText string) bool {
	if len(statuses) < domain.CheckCount {
		return false
	}

	passed := func(i int) bool { return statuses[i] == domain.StatusPassed }

	result.ValidExtension = passed(domain.CheckExtension)
	result.NoPassword = passed(domain.CheckPassword)
	result.FileSizeOK = passed(domain.CheckFileSize)
	result.PageSizeOK = passed(domain.CheckPageSize)

	result.Signed = passed(domain.CheckSignature)
	result.SignatureCount = 0
	if result.Signed {
		result.SignatureCount = 1
	}

	// the portal renders authenticity and integrity as a single icon
	result.AuthenticityOK = passed(domain.CheckAuthenticity)
	result.IntegrityOK = result.AuthenticityOK

	result.Searchable = passed(domain.CheckSearchable)

	switch statuses[domain.CheckFinal] {
	case domain.StatusPassed:
		result.Verdict = domain.VerdictValid
	case domain.StatusFailed:
		result.Verdict = domain.VerdictInvalid
	default:
		result.Verdict = domain.VerdictInvalid
		if allTrue(result.BaseChecks()) {
			result.Verdict = domain.VerdictValid
		}
	}

	if !result.Signed && containsAny(strings.ToLower(pageText), notSignedMarkers) {
		result.Message = domain.NotSignedMessage
	}

	return true
}

// Score is the percentage of base checks that passed, truncated
func Score(result *domain.ValidationResult) int {
	ok := 0
	for _, passed := range result.BaseChecks() {
		if passed {
			ok++
		}
	}
	return ok * 100 / domain.BaseCheckCount
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func allTrue(values []bool) bool {
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// hasClass matches whole class tokens, like a CSS class selector
func hasClass(n *html.Node, class string) bool {
	for _, token := range strings.Fields(attr(n, "class")) {
		if token == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
