package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- {{.Direction}}: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

`))

var fileNamePattern = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// MigrationFile describes one migration pair
type MigrationFile struct {
	Number      uint64
	Version     string
	Name        string
	Base        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// Creator writes new migration pairs. Versions are zero padded sequence
// numbers following the highest one already in the directory.
type Creator struct {
	Dir string
	Now func() time.Time
}

// NewCreator returns a Creator for dir
func NewCreator(dir string) *Creator {
	return &Creator{Dir: dir, Now: time.Now}
}

// Create writes <next>_<name>.up.sql and .down.sql
func (c *Creator) Create(name, description string) (*MigrationFile, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrationsFS(os.DirFS(c.Dir))
	if err != nil {
		return nil, err
	}
	var next uint64 = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Number + 1
	}

	version := fmt.Sprintf("%06d", next)
	base := version + "_" + clean
	mf := &MigrationFile{
		Number:      next,
		Version:     version,
		Name:        clean,
		Base:        base,
		Description: description,
		Timestamp:   c.Now().UTC().Format(time.RFC3339),
		UpPath:      filepath.Join(c.Dir, base+".up.sql"),
		DownPath:    filepath.Join(c.Dir, base+".down.sql"),
	}

	if err := writeMigration(mf.UpPath, "Up", mf); err != nil {
		return nil, err
	}
	if err := writeMigration(mf.DownPath, "Down", mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeMigration(path, direction string, mf *MigrationFile) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		*MigrationFile
		Direction string
	}{mf, direction}
	if err := migrationTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases and keeps [a-z0-9], collapsing separators to "_"
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// ListMigrationsFS returns the migrations found in fsys ordered by version.
// A version with only one direction is reported as an error.
func ListMigrationsFS(fsys fs.FS) ([]MigrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	type pair struct {
		file     MigrationFile
		up, down bool
	}
	byVersion := map[uint64]*pair{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := fileNamePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		n, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		p, ok := byVersion[n]
		if !ok {
			p = &pair{file: MigrationFile{Number: n, Version: match[1], Name: match[2], Base: match[1] + "_" + match[2]}}
			byVersion[n] = p
		}
		if match[3] == "up" {
			p.up = true
		} else {
			p.down = true
		}
	}

	files := make([]MigrationFile, 0, len(byVersion))
	for _, p := range byVersion {
		if !p.up || !p.down {
			return nil, fmt.Errorf("migration %s is missing its up or down file", p.file.Base)
		}
		files = append(files, p.file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Number < files[j].Number })
	return files, nil
}
