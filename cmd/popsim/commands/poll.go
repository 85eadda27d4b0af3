package commands

import (
	"strings"

	"popsim/internal/model"
	"popsim/internal/service"

	"github.com/spf13/cobra"
)

var (
	pollZone        string
	pollClusters    []string
	pollAgents      int
	pollAllocation  string
	pollTitle       string
	pollQuestion    string
	pollOptions     []string
	pollMode        string
	pollTemperature float64
	pollRows        bool
	pollOut         string
)

// PollCmd puts a closed question to a panel
var PollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Ask a panel a multiple-choice, ranking or scoring question",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Polls.Run(cmd.Context(), service.PollRequest{
			Title: pollTitle,
			Poll: model.Poll{
				Question: pollQuestion,
				Options:  pollOptions,
				Mode:     model.PollMode(strings.ToLower(pollMode)),
			},
			Panel: service.PanelSpec{
				ZoneID:         pollZone,
				ClusterIDs:     pollClusters,
				AgentCount:     pollAgents,
				AllocationMode: model.AllocationMode(strings.ToLower(pollAllocation)),
			},
			Temperature: pollTemperature,
		}, stderrProgress(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		if pollRows {
			return writeResult(pollOut, res.Rows())
		}
		return writeResult(pollOut, res)
	},
}

func init() {
	PollCmd.Flags().StringVar(&pollZone, "zone", "", "zone whose clusters form the panel")
	PollCmd.Flags().StringSliceVar(&pollClusters, "clusters", nil, "comma-separated cluster ids, instead of a whole zone")
	PollCmd.Flags().IntVar(&pollAgents, "agents", 10, "panel size")
	PollCmd.Flags().StringVar(&pollAllocation, "allocation", string(model.AllocationWeighted), "panel allocation: weighted or equal")
	PollCmd.Flags().StringVar(&pollTitle, "title", "", "poll title, defaults to the question")
	PollCmd.Flags().StringVar(&pollQuestion, "question", "", "question put to every agent")
	PollCmd.Flags().StringSliceVar(&pollOptions, "options", nil, "comma-separated answer options")
	PollCmd.Flags().StringVar(&pollMode, "mode", string(model.PollChoice), "choice, ranking or scoring")
	PollCmd.Flags().Float64Var(&pollTemperature, "temperature", 0, "sampling temperature, 0 uses the configured value")
	PollCmd.Flags().BoolVar(&pollRows, "rows", false, "print flat rows instead of the full result")
	PollCmd.Flags().StringVarP(&pollOut, "out", "o", "", "write the result to a file")

	PollCmd.MarkFlagRequired("question")
	PollCmd.MarkFlagRequired("options")
	PollCmd.MarkFlagsOneRequired("zone", "clusters")
}
