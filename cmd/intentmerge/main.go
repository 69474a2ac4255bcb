package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dusk-indust/intentmerge/internal/ai"
	"github.com/dusk-indust/intentmerge/internal/config"
	"github.com/dusk-indust/intentmerge/internal/export"
	"github.com/dusk-indust/intentmerge/internal/mcptools"
	"github.com/dusk-indust/intentmerge/internal/merge"
	"github.com/dusk-indust/intentmerge/internal/status"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ProjectRoot string
	Task        string
	Tasks       string
	Preview     bool
	DryRun      bool
	NoAI        bool
	Status      bool
	Report      string
	ServeMCP    bool
	MCPAddr     string
	Verbose     bool
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("intentmerge", flag.ContinueOnError)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the target project")
	fs.StringVar(&flags.Task, "task", "", "single task ID to merge")
	fs.StringVar(&flags.Tasks, "tasks", "", "comma-separated task IDs to merge")
	fs.BoolVar(&flags.Preview, "preview", false, "show what a merge would do without writing files")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "compute the merge but do not write files")
	fs.BoolVar(&flags.NoAI, "no-ai", false, "disable AI conflict resolution")
	fs.BoolVar(&flags.Status, "status", false, "show tracked files and task snapshots")
	fs.StringVar(&flags.Report, "report", "", "write the merge report as JSON to this path")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server for coding agent integration")
	fs.StringVar(&flags.MCPAddr, "mcp-addr", "localhost:8377", "address for the MCP server")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(flags.ProjectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.Verbose || cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if flags.Status {
		return printStatus(flags.ProjectRoot)
	}

	opts := merge.Options{
		DryRun:       flags.DryRun || cfg.DryRun,
		EnableAI:     !flags.NoAI && cfg.EnableAI,
		ExcludeDirs:  cfg.ExcludeDirs,
		ContextLines: cfg.ContextLines,
		Concurrency:  cfg.Concurrency,
	}
	if opts.EnableAI {
		client, err := ai.New(ai.Config{
			Endpoint:  cfg.AIEndpoint,
			Model:     cfg.AIModel,
			APIKeyEnv: cfg.APIKeyEnv,
		})
		if err != nil {
			log.Warn("AI resolution unavailable", "err", err)
			opts.EnableAI = false
		} else {
			opts.Complete = client.CompleteFunc()
		}
	}

	orch, err := merge.NewOrchestrator(flags.ProjectRoot, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP {
		svc := mcptools.NewMergeService(orch, opts.Complete)
		log.Info("serving MCP", "addr", flags.MCPAddr)
		return mcptools.RunMCPServer(ctx, svc, flags.MCPAddr)
	}

	taskIDs := splitTasks(flags.Tasks)
	if flags.Task != "" {
		taskIDs = append(taskIDs, flags.Task)
	}
	if len(taskIDs) == 0 {
		fs.Usage()
		return fmt.Errorf("no task IDs given, use -task, -tasks or -serve-mcp")
	}

	if flags.Preview {
		preview, err := orch.PreviewMerge(taskIDs)
		if err != nil {
			return err
		}
		fmt.Println(preview.Summary)
		for _, f := range preview.FilesToMerge {
			fmt.Printf("  %s\n", f)
		}
		for _, c := range preview.Conflicts {
			fmt.Printf("  conflict: %s at %s (%s, severity %s)\n", c.FilePath, c.Location, c.Strategy, c.Severity)
		}
		return nil
	}

	report, err := orch.MergeTasks(ctx, taskIDs)
	if err != nil {
		return err
	}
	fmt.Print(export.RenderMarkdown(report))

	if flags.Report != "" {
		if err := export.WriteJSON(report, flags.Report); err != nil {
			return err
		}
		log.Info("wrote report", "path", flags.Report)
	}
	if !report.Success {
		return fmt.Errorf("%d file(s) need attention", countFailed(report))
	}
	return nil
}

func printStatus(projectRoot string) error {
	st, err := status.Scan(projectRoot)
	if err != nil {
		return err
	}
	if len(st.Files) == 0 {
		fmt.Println("no tracked files")
		return nil
	}
	fmt.Printf("%d tracked file(s)\n", len(st.Files))
	for _, f := range st.Files {
		marker := " "
		if f.Conflicted {
			marker = "!"
		}
		fmt.Printf("%s %s (baseline %.12s) tasks: %s\n", marker, f.FilePath, f.BaselineCommit, strings.Join(f.Tasks, ", "))
	}
	fmt.Printf("%d task(s)\n", len(st.Tasks))
	for _, t := range st.Tasks {
		fmt.Printf("  %s: %d completed, %d open, %d change(s)", t.TaskID, t.Completed, t.Open, t.Changes)
		if t.Intent != "" {
			fmt.Printf(" (%s)", t.Intent)
		}
		fmt.Println()
	}
	return nil
}

func splitTasks(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func countFailed(report *merge.MergeReport) int {
	n := 0
	for _, f := range report.Files {
		if !f.Success {
			n++
		}
	}
	return n
}
