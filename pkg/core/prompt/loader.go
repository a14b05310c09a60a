package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"alphaseeker/pkg/core/utils"
)

// LoadFromDirectory loads prompts and schemas from dir, overriding any already registered.
// Expected structure:
//
//	baseDir/
//	  prompts/
//	    analysis/
//	      initial.hjson
//	  schemas/
//	    analysis_context.json
func (r *Registry) LoadFromDirectory(baseDir string) error {
	return r.LoadFS(os.DirFS(baseDir))
}

// LoadFS loads prompts and schemas from fsys using the LoadFromDirectory layout.
func (r *Registry) LoadFS(fsys fs.FS) error {
	if err := r.loadPrompts(fsys, "prompts"); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	if err := r.loadSchemas(fsys, "schemas"); err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	return nil
}

func isPromptFile(name string) bool {
	ext := path.Ext(name)
	return ext == ".json" || ext == ".hjson"
}

// loadPrompts walks dir for .json and .hjson prompt files
func (r *Registry) loadPrompts(fsys fs.FS, dir string) error {
	if _, err := fs.Stat(fsys, dir); err != nil {
		return fmt.Errorf("prompts directory not found: %s", dir)
	}

	return fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPromptFile(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		// Hjson is a superset of JSON, so one path handles both.
		normalized, err := utils.ParseHJSON(string(data))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal([]byte(normalized), &pt); err != nil {
			return fmt.Errorf("failed to decode %s: %w", p, err)
		}

		if pt.ID == "" {
			pt.ID = generateIDFromPath(p, dir)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(p, dir)
		}

		return r.Register(&pt)
	})
}

// loadSchemas registers every schema file under dir; the file body is the schema.
func (r *Registry) loadSchemas(fsys fs.FS, dir string) error {
	if _, err := fs.Stat(fsys, dir); err != nil {
		return nil // Schemas are optional
	}

	return fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", p, err)
		}

		baseName := strings.TrimSuffix(path.Base(p), ".json")
		return r.RegisterSchema(&ResponseSchema{ID: baseName, Name: baseName, JSONSchema: string(data)})
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "prompts/analysis/react.hjson" -> "analysis.react"
func generateIDFromPath(p string, baseDir string) string {
	rel := strings.TrimPrefix(p, baseDir+"/")
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return strings.ReplaceAll(rel, "/", ".")
}

// detectCategory extracts the category from the folder structure
func detectCategory(p string, baseDir string) string {
	rel := strings.TrimPrefix(p, baseDir+"/")
	parts := strings.Split(rel, "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

var funcs = template.FuncMap{
	"json": func(v interface{}) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"orNA": func(v interface{}) interface{} {
		if v == nil {
			return "N/A"
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return v
	},
}

func render(id, body string, vars map[string]interface{}) (string, error) {
	if body == "" {
		return "", nil
	}

	tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Render fills the system and user templates of prompt id. Required variables
// must be present; optional ones fall back to their declared default. When the
// prompt references a response schema it is appended to the system prompt.
func (r *Registry) Render(id string, ctx *PromptExecutionContext) (system, user string, err error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return "", "", err
	}

	vars := make(map[string]interface{}, len(ctx.Variables)+len(pt.Variables))
	for k, v := range ctx.Variables {
		vars[k] = v
	}
	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; ok {
			continue
		}
		if v.Required {
			return "", "", fmt.Errorf("prompt %s: missing required variable %s", id, v.Name)
		}
		vars[v.Name] = v.Default
	}

	if system, err = render(id+".system", pt.SystemPrompt, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", id, err)
	}
	if user, err = render(id+".user", pt.UserPromptTmpl, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", id, err)
	}

	if pt.ResponseSchemaID != "" {
		schema, err := r.GetSchema(pt.ResponseSchemaID)
		if err != nil {
			return "", "", fmt.Errorf("prompt %s: %w", id, err)
		}
		system = strings.TrimRight(system, "\n") +
			"\n\nReturn exactly one JSON object matching this schema, with no commentary:\n" + schema.JSONSchema
	}
	return system, user, nil
}
