// Command openapi-compat fails when an API revision breaks clients of a baseline.
// Either document may be YAML or JSON; omitting -revision checks the API
// description compiled into the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"launchpad/docs"
)

func main() {
	basePath := flag.String("base", "", "baseline OpenAPI document (yaml or json)")
	revisionPath := flag.String("revision", "", "revised OpenAPI document; defaults to the built-in docs")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		os.Exit(2)
	}

	base, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load baseline: %v\n", err)
		os.Exit(1)
	}

	var revision apiSurface
	if strings.TrimSpace(*revisionPath) == "" {
		revision, err = parseSurface([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadFile(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load revision: %v\n", err)
		os.Exit(1)
	}

	breaks := breakingChanges(base, revision)
	if len(breaks) > 0 {
		fmt.Fprintln(os.Stderr, "breaking changes:")
		for _, b := range breaks {
			fmt.Fprintf(os.Stderr, "- %s\n", b)
		}
		os.Exit(1)
	}
	fmt.Println("openapi compatibility check passed")
}

func loadFile(path string) (apiSurface, error) {
	// #nosec G304: operator-supplied path in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return apiSurface{}, err
	}
	return parseSurface(raw)
}
