package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"alfredoptarigan/cv-profiler/internal/models"
	"alfredoptarigan/cv-profiler/internal/services"
)

var renderCmd = &cobra.Command{
	Use:   "render FILE...",
	Short: "Render profiles for one or more CV files",
	Long: "Runs every file through extraction, AI, normalization and rendering. One file yields a .docx, " +
		"several files a .zip with one .docx per successfully processed CV.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

var (
	renderNotes     string
	renderNotesFile string
	renderOut       string
	renderReport    string
)

func init() {
	renderCmd.Flags().StringVarP(&renderNotes, "notes", "n", "", "Recruiter notes applied to every CV")
	renderCmd.Flags().StringVar(&renderNotesFile, "notes-file", "", "Read recruiter notes from a file")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", ".", "Output file, or directory for the generated file name")
	renderCmd.Flags().StringVar(&renderReport, "report", "", "Write a per-document xlsx report to this path")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	notes := renderNotes
	if renderNotesFile != "" {
		content, err := os.ReadFile(renderNotesFile)
		if err != nil {
			return fmt.Errorf("failed to read notes file: %w", err)
		}
		notes = string(content)
	}

	uploads := make([]models.Upload, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		uploads = append(uploads, models.Upload{Filename: filepath.Base(path), Data: data})
	}

	orchestrator, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	result, err := orchestrator.ProcessBatch(ctx, notes, uploads)
	if err != nil {
		return err
	}

	delivery, packageErr := orchestrator.Package(result)

	out := cmd.OutOrStdout()
	for _, doc := range result.Documents {
		line := fmt.Sprintf("%-40s %s", doc.Filename, doc.Status)
		if doc.Err != nil {
			line = fmt.Sprintf("%-40s %s at %s: %v", doc.Filename, doc.Status, doc.FailedStage, doc.Err)
		}
		if w := doc.Warning(); w != "" {
			line += " [warning: " + w + "]"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "succeeded: %d, failed: %d\n", result.Succeeded, result.Failed)

	if renderReport != "" {
		report, err := services.BuildBatchReport(result)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		if err := os.WriteFile(renderReport, report, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(out, "report: %s\n", renderReport)
	}

	if packageErr != nil {
		return packageErr
	}

	target := outputPath(renderOut, delivery.Filename)
	if err := os.WriteFile(target, delivery.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	fmt.Fprintf(out, "written: %s\n", target)
	return nil
}

// outputPath treats an existing directory (or a path ending in a separator)
// as the place for the generated file name.
func outputPath(out, generated string) string {
	if out == "" {
		return generated
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, generated)
	}
	if os.IsPathSeparator(out[len(out)-1]) {
		return filepath.Join(out, generated)
	}
	return out
}

func buildOrchestrator(ctx context.Context) (services.BatchOrchestrator, error) {
	policy, err := services.LoadLanguagePolicy(cfg.Template.PolicyPath)
	if err != nil {
		return nil, err
	}
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	aiClient, err := services.NewAIClientFromConfig(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}

	return services.NewBatchOrchestrator(services.OrchestratorDeps{
		Ingestor:   services.NewDocumentIngestor(services.IngestorOptions{ExtractTimeout: cfg.Storage.ExtractTimeout}),
		Prompts:    services.NewPromptBuilder(policy),
		AI:         aiClient,
		Normalizer: services.NewResponseNormalizer(),
		Renderer:   renderer,
		Policy:     policy,
	}), nil
}

func newRenderer() (services.TemplateRenderer, error) {
	style, err := services.ParseBulletStyle(cfg.Template.BulletStyle)
	if err != nil {
		return nil, err
	}
	return services.NewTemplateRenderer(cfg.Template.Path, style)
}
