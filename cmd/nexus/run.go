package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nexusswarm/nexus/internal/agent"
	"github.com/nexusswarm/nexus/internal/config"
	"github.com/nexusswarm/nexus/internal/swarm"
	"github.com/nexusswarm/nexus/pkg/models"
)

var (
	runGraphFile  string
	runDirect     bool
	runSwarmMode  bool
	runCandidates int
	runQuiet      bool
	runTimeout    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Execute a goal with the agent swarm",
	Long: `Execute a goal using role-specialized LLM agents.

By default the coordinator first judges whether the goal needs the full
swarm. Simple goals run as one executor task; everything else is handed to
the planner, decomposed into a dependency graph, and executed wave by wave.

A pre-built task graph can be supplied instead of a goal:

  nexus run --graph plan.yaml

The YAML carries the goal, its tasks with depends_on edges, and optionally
terminal_tasks naming which tasks decide overall success.

Speculative execution (--candidates N) runs each task on N agents and
resolves disagreements with the configured consensus strategy.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().StringVar(&runGraphFile, "graph", "", "YAML file with a pre-built task graph")
	runCmd.Flags().BoolVar(&runDirect, "direct", false, "Force direct mode: one executor task, no decomposition")
	runCmd.Flags().BoolVar(&runSwarmMode, "swarm", false, "Force swarm mode: always decompose")
	runCmd.Flags().IntVar(&runCandidates, "candidates", 0, "Speculative executions per task (consensus resolves)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress progress events")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this duration")
}

func runGoal(cmd *cobra.Command, args []string) error {
	if runGraphFile == "" && len(args) == 0 {
		return fmt.Errorf("provide a goal or --graph")
	}
	if runDirect && runSwarmMode {
		return fmt.Errorf("--direct and --swarm are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	gg, err := buildGoalGraph(ctx, st, args)
	if err != nil {
		return err
	}
	if runCandidates > 1 {
		for _, task := range gg.Tasks {
			if task.Candidates == 0 {
				task.Candidates = runCandidates
			}
		}
	}

	orch, err := newOrchestrator(cfg, st)
	if err != nil {
		return err
	}
	defer orch.Shutdown(5 * time.Second)

	if !runQuiet {
		go printEvents(orch.Events())
	}

	outcome, err := orch.Execute(ctx, gg)
	if outcome != nil {
		printOutcome(outcome, st)
	}
	return err
}

// buildGoalGraph resolves the task graph: from a YAML file, or from the
// goal via coordinator evaluation and planner decomposition.
func buildGoalGraph(ctx context.Context, st *stack, args []string) (*models.GoalGraph, error) {
	if runGraphFile != "" {
		return loadGraphFile(runGraphFile)
	}
	goal := args[0]

	direct := runDirect
	if !direct && !runSwarmMode {
		eval, err := st.provider.Coordinator().EvaluateGoal(ctx, goal)
		if err != nil {
			return nil, err
		}
		direct = eval.Strategy == agent.StrategyDirect
		if !runQuiet && eval.Reason != "" {
			fmt.Printf("%s %s strategy: %s\n", color.CyanString("›"), eval.Strategy, eval.Reason)
		}
	}

	if direct {
		return &models.GoalGraph{
			Goal: goal,
			Tasks: []*models.Task{{
				ID:          "t1",
				Title:       "Complete the goal",
				Description: goal,
				Role:        models.RoleExecutor,
			}},
		}, nil
	}

	gg, err := st.provider.Planner().Decompose(ctx, goal)
	if err != nil {
		return nil, err
	}
	if !runQuiet {
		fmt.Printf("%s plan: %d task(s)\n", color.CyanString("›"), len(gg.Tasks))
	}
	return gg, nil
}

func loadGraphFile(path string) (*models.GoalGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	var gg models.GoalGraph
	if err := yaml.Unmarshal(data, &gg); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}
	if gg.Goal == "" {
		return nil, fmt.Errorf("graph file has no goal")
	}
	return &gg, nil
}

func newOrchestrator(cfg *config.Config, st *stack) (*swarm.Orchestrator, error) {
	opts := []swarm.Option{
		swarm.WithSynthesizer(st.provider.Coordinator()),
		swarm.WithReviewer(st.provider.Critic()),
		swarm.WithMaxAgentsPerRole(cfg.Swarm.MaxAgentsPerRole),
		swarm.WithMailboxCapacity(cfg.Swarm.MailboxCapacity),
		swarm.WithConsensusStrategy(models.ConsensusStrategy(cfg.Swarm.ConsensusStrategy)),
		swarm.WithRetry(swarm.RetryConfig{MaxAttempts: cfg.Swarm.MaxDispatchAttempts}),
		swarm.WithCancelGrace(cfg.Swarm.CancelGrace),
	}
	return swarm.NewOrchestrator(swarm.RequiredConfig{Workers: st.provider}, opts...)
}

// printEvents renders progress events until the channel closes.
func printEvents(events <-chan swarm.Event) {
	for e := range events {
		switch e.Type {
		case swarm.EventTaskStarted:
			fmt.Printf("%s %s (%s) started\n", color.CyanString("→"), e.TaskID, e.Role)
		case swarm.EventTaskCompleted:
			fmt.Printf("%s %s done\n", color.GreenString("✓"), e.TaskID)
		case swarm.EventTaskFailed:
			fmt.Printf("%s %s failed: %v\n", color.RedString("✗"), e.TaskID, e.Error)
		case swarm.EventTaskSkipped:
			fmt.Printf("%s %s skipped: %s\n", color.YellowString("∅"), e.TaskID, e.Message)
		case swarm.EventTaskRetrying:
			fmt.Printf("%s %s %s\n", color.YellowString("…"), e.TaskID, e.Message)
		case swarm.EventConsensusResolved:
			fmt.Printf("%s %s consensus: %s\n", color.CyanString("⚖"), e.TaskID, e.Message)
		case swarm.EventGoalCancelled:
			fmt.Printf("%s cancelled, draining in-flight tasks\n", color.YellowString("!"))
		}
	}
}

// printOutcome renders the final outcome and token spend.
func printOutcome(outcome *models.Outcome, st *stack) {
	fmt.Println()
	if outcome.Success {
		color.Green("Goal succeeded (%s)", outcome.Duration().Round(time.Millisecond))
	} else {
		color.Red("Goal failed (%s)", outcome.Duration().Round(time.Millisecond))
	}
	fmt.Printf("tasks: %d succeeded, %d failed, %d skipped\n",
		outcome.Counts[models.TaskStatusSucceeded],
		outcome.Counts[models.TaskStatusFailed],
		outcome.Counts[models.TaskStatusSkipped])

	if outcome.Summary != "" {
		fmt.Printf("\n%s\n%s\n", color.New(color.Bold).Sprint("Answer"), outcome.Summary)
	} else {
		for id, result := range outcome.Results {
			fmt.Printf("\n%s\n%s\n", color.New(color.Bold).Sprintf("Task %s", id), result)
		}
	}
	if outcome.Review != "" {
		fmt.Printf("\n%s\n%s\n", color.New(color.Bold).Sprint("Review"), outcome.Review)
	}
	for id, failure := range outcome.Failures {
		fmt.Printf("\n%s %s: %s\n", color.RedString("failure"), id, failure)
	}

	input, output := st.client.Tracker().Total()
	if input+output > 0 {
		fmt.Printf("\ntokens: %d in / %d out (%d calls, ~$%.4f)\n",
			input, output, st.client.Tracker().Calls(), st.client.Tracker().Cost())
	}
}
