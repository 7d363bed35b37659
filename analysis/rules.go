package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// fetchable source extensions. Binary and vendored content is skipped.
var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".mod": true, ".sum": true, ".txt": true, ".md": true,
}

const maxDocumentBytes = 1 << 20

// FileFetcher resolves a target as a file or directory on the local
// filesystem.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, target string) ([]Document, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}

	if !info.IsDir() {
		doc, err := readDocument(target)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var docs []Document
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name != "." && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[filepath.Ext(path)] {
			return nil
		}
		doc, err := readDocument(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk target: %w", err)
	}
	return docs, nil
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > maxDocumentBytes {
		data = data[:maxDocumentBytes]
	}
	return Document{Path: path, Content: string(data)}, nil
}

var (
	secretPattern    = regexp.MustCompile(`(?i)(password|secret|api_key|apikey|token)\s*[:=]\s*["'][^"']{4,}["']`)
	plainHTTPPattern = regexp.MustCompile(`http://[a-zA-Z0-9.-]+`)
	todoPattern      = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK)\b`)
	replacePattern   = regexp.MustCompile(`^\s*replace\s`)
	wildcardVersion  = regexp.MustCompile(`[*^~]\d|\blatest\b`)
)

// RuleAnalyzer is a lightweight line-oriented analyzer with a fixed ruleset
// per analysis type.
type RuleAnalyzer struct{}

// Analyze implements Analyzer.
func (a *RuleAnalyzer) Analyze(ctx context.Context, typ Type, docs []Document) ([]Issue, error) {
	var issues []Issue
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, line := range strings.Split(doc.Content, "\n") {
			issues = append(issues, checkLine(typ, doc.Path, i+1, line)...)
		}
	}
	return issues, nil
}

func checkLine(typ Type, path string, lineNo int, line string) []Issue {
	var issues []Issue
	add := func(sev Severity, rule, msg string) {
		issues = append(issues, Issue{Severity: sev, Rule: rule, Path: path, Line: lineNo, Message: msg})
	}

	switch typ {
	case TypeSecurity:
		if secretPattern.MatchString(line) {
			add(SeverityCritical, "hardcoded-credential", "possible hardcoded credential")
		}
		if plainHTTPPattern.MatchString(line) && !strings.Contains(line, "localhost") && !strings.Contains(line, "127.0.0.1") {
			add(SeverityMedium, "plaintext-transport", "non-TLS URL")
		}
	case TypeQuality:
		if len(line) > 160 {
			add(SeverityLow, "long-line", fmt.Sprintf("line exceeds 160 characters (%d)", len(line)))
		}
		if todoPattern.MatchString(line) {
			add(SeverityInfo, "open-marker", "unresolved TODO/FIXME/HACK marker")
		}
	case TypeDependencies:
		isManifest := strings.HasSuffix(path, "go.mod") || strings.HasSuffix(path, "requirements.txt") ||
			strings.HasSuffix(path, "package.json")
		if !isManifest {
			return nil
		}
		if replacePattern.MatchString(line) {
			add(SeverityMedium, "local-replace", "replace directive overrides a published module")
		}
		if wildcardVersion.MatchString(line) {
			add(SeverityLow, "floating-version", "unpinned dependency version")
		}
	}
	return issues
}
