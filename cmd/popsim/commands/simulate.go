package commands

import (
	"fmt"
	"os"
	"strings"

	"popsim/internal/model"
	"popsim/internal/service"

	"github.com/spf13/cobra"
)

var (
	simZone         string
	simClusters     []string
	simAgents       int
	simAllocation   string
	simScenario     string
	simScenarioFile string
	simContext      string
	simTitle        string
	simReactionMode string
	simChannel      string
	simTemperature  float64
	simSummarize    bool
	simRows         bool
	simOut          string
)

// SimulateCmd runs a scenario against a panel and prints the stored simulation
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate how a panel reacts to a scenario",
	Long: `Select a panel from the zone's clusters, ask every agent to react to the
scenario and store the result. Prints the simulation as JSON, or its flat rows
with --rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario := simScenario
		if simScenarioFile != "" {
			data, err := os.ReadFile(simScenarioFile)
			if err != nil {
				return fmt.Errorf("failed to read scenario: %w", err)
			}
			scenario = string(data)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sim, err := a.Simulations.Run(cmd.Context(), service.SimulationRequest{
			Title:    simTitle,
			Scenario: scenario,
			Context:  simContext,
			Panel: service.PanelSpec{
				ZoneID:         simZone,
				ClusterIDs:     simClusters,
				AgentCount:     simAgents,
				AllocationMode: model.AllocationMode(strings.ToLower(simAllocation)),
			},
			ReactionMode: model.ReactionMode(strings.ToLower(simReactionMode)),
			Channel:      simChannel,
			Temperature:  simTemperature,
			Summarize:    simSummarize,
		}, stderrProgress(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		if simRows {
			return writeResult(simOut, sim.Rows())
		}
		return writeResult(simOut, sim)
	},
}

func init() {
	SimulateCmd.Flags().StringVar(&simZone, "zone", "", "zone whose clusters form the panel")
	SimulateCmd.Flags().StringSliceVar(&simClusters, "clusters", nil, "comma-separated cluster ids, instead of a whole zone")
	SimulateCmd.Flags().IntVar(&simAgents, "agents", 10, "panel size")
	SimulateCmd.Flags().StringVar(&simAllocation, "allocation", string(model.AllocationWeighted), "panel allocation: weighted or equal")
	SimulateCmd.Flags().StringVar(&simScenario, "scenario", "", "scenario text")
	SimulateCmd.Flags().StringVar(&simScenarioFile, "scenario-file", "", "read the scenario from a file")
	SimulateCmd.Flags().StringVar(&simContext, "context", "", "background context shown to every agent")
	SimulateCmd.Flags().StringVar(&simTitle, "title", "", "title, defaults to the scenario's first line")
	SimulateCmd.Flags().StringVar(&simReactionMode, "reaction-mode", "", "single or batched, defaults to the configured mode")
	SimulateCmd.Flags().StringVar(&simChannel, "channel", service.DefaultChannel, "exposure channel recorded with each reaction")
	SimulateCmd.Flags().Float64Var(&simTemperature, "temperature", 0, "sampling temperature, 0 uses the configured value")
	SimulateCmd.Flags().BoolVar(&simSummarize, "summarize", false, "ask the model for a summary of the reactions")
	SimulateCmd.Flags().BoolVar(&simRows, "rows", false, "print flat rows instead of the full simulation")
	SimulateCmd.Flags().StringVarP(&simOut, "out", "o", "", "write the result to a file")

	SimulateCmd.MarkFlagsOneRequired("zone", "clusters")
	SimulateCmd.MarkFlagsOneRequired("scenario", "scenario-file")
	SimulateCmd.MarkFlagsMutuallyExclusive("scenario", "scenario-file")
}
