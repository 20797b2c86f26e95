package printing

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// templatePattern selects template files below the override directory
const templatePattern = "**/*.html"

// TemplateStore holds the parsed DAMDFE templates. Files found in the
// override directory replace the embedded ones with the same relative name.
type TemplateStore struct {
	dir    string
	logger *zap.Logger

	mu       sync.RWMutex
	set      *template.Template
	names    []string
	loadedAt time.Time
}

// NewTemplateStore parses the embedded templates and the overrides in dir
// (which may be empty)
func NewTemplateStore(dir string, logger *zap.Logger) (*TemplateStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TemplateStore{dir: dir, logger: logger.Named("templates")}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the override directory
func (s *TemplateStore) Dir() string { return s.dir }

// Reload parses every template again. On error the previous set stays active.
func (s *TemplateStore) Reload() error {
	set := template.New("").Funcs(templateFuncs())
	var names []string

	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return err
	}
	embedded, err := parseTree(set, sub)
	if err != nil {
		return NewRenderError(ErrCodeTemplateFailed, "failed to parse embedded templates", err)
	}
	names = append(names, embedded...)

	overrides := 0
	if s.dir != "" {
		if info, statErr := os.Stat(s.dir); statErr == nil && info.IsDir() {
			external, err := parseTree(set, os.DirFS(s.dir))
			if err != nil {
				return NewRenderError(ErrCodeTemplateFailed, "failed to parse templates in "+s.dir, err)
			}
			overrides = len(external)
			names = append(names, external...)
		} else {
			s.logger.Warn("Template directory not found, using embedded templates", zap.String("dir", s.dir))
		}
	}

	names = dedupe(names)
	s.mu.Lock()
	s.set = set
	s.names = names
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("Templates loaded", zap.Strings("names", names), zap.Int("overrides", overrides))
	return nil
}

func parseTree(set *template.Template, fsys fs.FS) ([]string, error) {
	files, err := doublestar.Glob(fsys, templatePattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		if _, err := set.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return files, nil
}

// Execute renders the named template
func (s *TemplateStore) Execute(w io.Writer, name string, data any) error {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	t := set.Lookup(name)
	if t == nil {
		return NewRenderError(ErrCodeTemplateMissing, "template not found: "+name, nil)
	}
	// Execute marks the set as escaped, so later reloads build a new set
	if err := t.Execute(w, data); err != nil {
		return NewRenderError(ErrCodeTemplateFailed, "failed to execute "+name, err)
	}
	return nil
}

// Names lists the loaded template names
func (s *TemplateStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// LoadedAt is the time of the last successful load
func (s *TemplateStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func dedupe(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}
	return out
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"formatMoney":    formatMoney,
		"formatWeight":   formatWeight,
		"join":           strings.Join,
		"upper":          strings.ToUpper,
		"inc":            func(i int) int { return i + 1 },
		"padNumber": func(n, width int) string {
			return fmt.Sprintf("%0*d", width, n)
		},
		"default": func(def, v string) string {
			if strings.TrimSpace(v) == "" {
				return def
			}
			return v
		},
	}
}

// brazilTZ renders timestamps in Brasilia time
var brazilTZ = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

func formatDate(v any) string {
	t, ok := asTime(v)
	if !ok {
		return ""
	}
	return t.In(brazilTZ).Format("02/01/2006")
}

func formatDateTime(v any) string {
	t, ok := asTime(v)
	if !ok {
		return ""
	}
	return t.In(brazilTZ).Format("02/01/2006 15:04:05")
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// formatMoney renders 1234.5 as "R$ 1.234,50"
func formatMoney(d decimal.Decimal) string {
	return "R$ " + brazilianNumber(d, 2)
}

// formatWeight renders the gross weight with four decimals
func formatWeight(d decimal.Decimal) string {
	return brazilianNumber(d, 4)
}

func brazilianNumber(d decimal.Decimal, places int32) string {
	s := d.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
