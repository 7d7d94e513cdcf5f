package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var httpMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {}, "patch": {}, "head": {}, "options": {},
}

// endpoint is what clients depend on for one method+path.
type endpoint struct {
	statuses       map[string]struct{}
	requiredParams map[string]struct{}
}

// apiSurface maps path -> method -> endpoint.
type apiSurface map[string]map[string]endpoint

// parseSurface reads a swagger 2 or OpenAPI 3 document. JSON is valid YAML.
func parseSurface(raw []byte) (apiSurface, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("document has no paths")
	}

	surface := make(apiSurface, len(doc.Paths))
	for path, methods := range doc.Paths {
		for method, node := range methods {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := httpMethods[method]; !ok {
				continue
			}
			var op struct {
				Responses  map[string]yaml.Node `yaml:"responses"`
				Parameters []struct {
					Name     string `yaml:"name"`
					In       string `yaml:"in"`
					Required bool   `yaml:"required"`
				} `yaml:"parameters"`
			}
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}

			ep := endpoint{statuses: map[string]struct{}{}, requiredParams: map[string]struct{}{}}
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					ep.statuses[code] = struct{}{}
				}
			}
			for _, p := range op.Parameters {
				if p.Required {
					ep.requiredParams[p.In+":"+p.Name] = struct{}{}
				}
			}
			if surface[path] == nil {
				surface[path] = map[string]endpoint{}
			}
			surface[path][method] = ep
		}
	}
	return surface, nil
}

// breakingChanges lists removed paths, operations and documented statuses, plus
// parameters that became required.
func breakingChanges(base, revision apiSurface) []string {
	var out []string
	for path, methods := range base {
		revMethods, ok := revision[path]
		if !ok {
			out = append(out, "removed path: "+path)
			continue
		}
		for method, before := range methods {
			after, ok := revMethods[method]
			if !ok {
				out = append(out, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}
			for code := range before.statuses {
				if _, ok := after.statuses[code]; !ok {
					out = append(out, fmt.Sprintf("removed response: %s %s -> %s", strings.ToUpper(method), path, strings.ToUpper(code)))
				}
			}
			for param := range after.requiredParams {
				if _, ok := before.requiredParams[param]; !ok {
					out = append(out, fmt.Sprintf("new required parameter: %s %s -> %s", strings.ToUpper(method), path, param))
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
