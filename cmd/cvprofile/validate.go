package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"alfredoptarigan/cv-profiler/internal/services"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate an edited profile JSON file",
	Long:  "Checks a hand-edited candidate profile against the profile schema and optionally renders it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var validateRender string

func init() {
	validateCmd.Flags().StringVarP(&validateRender, "render", "r", "", "Render the validated profile to this .docx path or directory")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	profile, err := services.NewResponseNormalizer().ParseEdited(string(content))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "valid: %s (%d experience, %d education, %d languages, %d skills)\n",
		args[0], len(profile.Experience), len(profile.Education), len(profile.Languages), len(profile.Skills))

	policy, err := services.LoadLanguagePolicy(cfg.Template.PolicyPath)
	if err != nil {
		return err
	}
	for _, warning := range policy.Review(profile) {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	if validateRender == "" {
		return nil
	}

	renderer, err := newRenderer()
	if err != nil {
		return err
	}
	doc, err := renderer.Render(profile)
	if err != nil {
		return err
	}

	target := outputPath(validateRender, services.OutputFilename(profile))
	if err := os.WriteFile(target, doc, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	fmt.Fprintf(out, "written: %s\n", target)
	return nil
}
