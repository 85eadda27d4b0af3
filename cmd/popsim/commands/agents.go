package commands

import (
	"fmt"

	"popsim/internal/service"

	"github.com/spf13/cobra"
)

var (
	genCluster     string
	genCount       int
	genTemperature float64
	listCluster    string
	normalizeZone  string
)

// AgentsCmd groups agent commands
var AgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage the agents of a cluster",
}

var agentsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new agents for a cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.Agents.Generate(cmd.Context(), service.GenerateAgentsRequest{
			ClusterID:   genCluster,
			Count:       genCount,
			Temperature: genTemperature,
		}, stderrProgress(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "generated %d of %d agents\n", len(agents), genCount)
		return writeResult("", agents)
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the agents of a cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.Agents.ListByCluster(cmd.Context(), listCluster)
		if err != nil {
			return err
		}
		for _, ag := range agents {
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-28s %3d  %s\n", ag.AgentNumber, ag.Name, ag.Age, ag.ID)
		}
		return nil
	},
}

// ClustersCmd groups cluster commands
var ClustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Manage the clusters of a zone",
}

var clustersNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rescale a zone's cluster weights to sum to 100",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		clusters, err := a.Clusters.NormalizeWeights(cmd.Context(), normalizeZone)
		if err != nil {
			return err
		}
		for _, c := range clusters {
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %6.2f\n", c.Name, c.Weight)
		}
		return nil
	},
}

func init() {
	agentsGenerateCmd.Flags().StringVar(&genCluster, "cluster", "", "cluster id")
	agentsGenerateCmd.Flags().IntVar(&genCount, "count", 5, fmt.Sprintf("number of agents, at most %d", service.MaxAgentsPerRequest))
	agentsGenerateCmd.Flags().Float64Var(&genTemperature, "temperature", 0, "sampling temperature, 0 uses the configured value")
	agentsGenerateCmd.MarkFlagRequired("cluster")

	agentsListCmd.Flags().StringVar(&listCluster, "cluster", "", "cluster id")
	agentsListCmd.MarkFlagRequired("cluster")

	AgentsCmd.AddCommand(agentsGenerateCmd, agentsListCmd)

	clustersNormalizeCmd.Flags().StringVar(&normalizeZone, "zone", "", "zone id")
	clustersNormalizeCmd.MarkFlagRequired("zone")

	ClustersCmd.AddCommand(clustersNormalizeCmd)
}
