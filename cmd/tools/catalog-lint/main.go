// cmd/tools/catalog-lint/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"onboarding-flow/internal/flow/catalog"
	"onboarding-flow/internal/flow/progress"
	"onboarding-flow/internal/flow/resolver"
	"onboarding-flow/internal/flow/validator"
	"onboarding-flow/internal/models"
	"onboarding-flow/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	simulateCmd := flag.NewFlagSet("simulate", flag.ExitOnError)

	// Validate command flags
	validatePath := validateCmd.String("path", "configs/catalogs.yaml", "Path to catalog registry file (.yaml or .json)")

	// Export command flags
	exportOut := exportCmd.String("out", "", "Output file; stdout when empty")
	exportFormat := exportCmd.String("format", "yaml", "Output format when writing to stdout (yaml, json)")
	exportChildren := exportCmd.Int("max-children", catalog.DefaultMaxChildren, "Child steps in the family catalog")

	// Simulate command flags
	simPath := simulateCmd.String("path", "", "Optional catalog registry overlay")
	simFlow := simulateCmd.String("flow", string(models.FlowFamily), "Flow type (family, nanny)")
	simAnswers := simulateCmd.String("answers", "", "Answers as a JSON object, or @file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateFile(*validatePath); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog validation passed.")

	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := export(*exportOut, *exportFormat, *exportChildren); err != nil {
			fmt.Printf("Error exporting catalogs: %v\n", err)
			os.Exit(1)
		}

	case "simulate":
		simulateCmd.Parse(os.Args[2:])
		if err := simulate(*simPath, models.FlowType(*simFlow), *simAnswers); err != nil {
			fmt.Printf("Simulation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

// validateFile lints every catalog in path without touching the built-ins.
func validateFile(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Catalogs) == 0 {
		return fmt.Errorf("%s holds no catalogs", path)
	}

	failed := false
	for i := range reg.Catalogs {
		c := &reg.Catalogs[i]
		issues := catalog.Lint(c)
		if len(issues) == 0 {
			fmt.Printf("✓ %s (%d questions)\n", c.FlowType, len(c.Questions()))
			continue
		}
		failed = true
		fmt.Printf("✗ %s\n", c.FlowType)
		for _, issue := range issues {
			fmt.Printf("    %s\n", issue)
		}
	}
	if failed {
		return fmt.Errorf("one or more catalogs are invalid")
	}
	return nil
}

func export(out, format string, maxChildren int) error {
	reg, err := catalog.Builtin(maxChildren)
	if err != nil {
		return err
	}
	bundle := reg.Export(time.Now().UTC().Format(time.RFC3339))

	if out != "" {
		if err := registry.WriteRegistry(out, bundle); err != nil {
			return err
		}
		fmt.Printf("Wrote %d catalogs to %s\n", len(bundle.Catalogs), out)
		return nil
	}

	data, err := registry.Encode(bundle, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// simulate prints the visible sequence for a set of answers, marking the
// resume point a returning user would land on.
func simulate(path string, flowType models.FlowType, rawAnswers string) error {
	reg, err := catalog.Load(path, catalog.DefaultMaxChildren)
	if err != nil {
		return err
	}
	c, err := reg.Get(flowType)
	if err != nil {
		return err
	}

	answers := models.Answers{}
	if rawAnswers != "" {
		if rawAnswers[0] == '@' {
			data, err := os.ReadFile(rawAnswers[1:])
			if err != nil {
				return err
			}
			rawAnswers = string(data)
		}
		if answers, err = models.DecodeAnswers(rawAnswers); err != nil {
			return fmt.Errorf("invalid answers: %w", err)
		}
	}

	resume, _ := resolver.ResumePosition(c, answers, validator.Valid)
	seq := resolver.Sequence(c, answers)
	fmt.Printf("%s catalog %s: %d visible of %d questions\n\n", c.FlowType, c.Version, len(seq), len(c.Questions()))

	for i, e := range seq {
		marker := " "
		if e.Position == resume {
			marker = ">"
		}
		status := "missing"
		if validator.Valid(e.Question, answers) {
			status = "ok"
		}
		p := progress.ForPosition(c, answers, e.Position)
		fmt.Printf("%s %3d. [%d.%d] %-24s %-8s %3d%%\n", marker, i+1, e.Position.Step, e.Position.Index, e.Question.Field, status, p.Percent())
	}
	return nil
}

func help() {
	fmt.Println(`Usage: catalog-lint <command> [options]

Commands:
  validate   Lint a catalog registry file
             -path string   Path to registry file (default "configs/catalogs.yaml")

  export     Write the built-in catalogs as a registry file
             -out string    Output file; stdout when empty
             -format string yaml or json (default "yaml")
             -max-children int

  simulate   Print the visible sequence and resume point for some answers
             -flow string   family or nanny (default "family")
             -answers string JSON object or @file
             -path string   Optional registry overlay

  help       Show this help message`)
}
