package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/muurk/arrayacq/internal/dataset"
)

var (
	dsFile     string
	dsChannels int
	dsSamples  int
	dsFS       float64
	dsFC       float64
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage stored datasets",
	Long: `Manage the datasets replayed by the simulated device.

Datasets live in a SQLite file. When --file is not given, the data_file of
the configuration is used.`,
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		infos, err := store.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No datasets.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCHANNELS\tSAMPLES")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%d\n", info.Name, info.Channels, info.Samples)
		}
		return w.Flush()
	},
}

var datasetGenerateCmd = &cobra.Command{
	Use:     "generate NAME",
	Short:   "Store a synthetic point-target dataset",
	Example: `  arrayacq-server dataset generate phantom --file sets.db --channels 64 --samples 2048`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dsChannels < 1 || dsSamples < 1 {
			return fmt.Errorf("channels and samples must be >= 1")
		}
		if dsFS <= 0 || dsFC <= 0 {
			return fmt.Errorf("sampling and center frequency must be > 0")
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		m := dataset.Synthetic(dsChannels, dsSamples, dsFS, dsFC)
		if err := store.Save(args[0], m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %q (%d x %d)\n", args[0], m.Channels, m.Samples)
		return nil
	},
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a stored dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	datasetCmd.PersistentFlags().StringVar(&dsFile, "file", "", "Dataset database file")

	datasetGenerateCmd.Flags().IntVar(&dsChannels, "channels", 32, "Number of channels")
	datasetGenerateCmd.Flags().IntVar(&dsSamples, "samples", 1024, "Samples per channel")
	datasetGenerateCmd.Flags().Float64Var(&dsFS, "fs", 40e6, "Sampling frequency in Hz")
	datasetGenerateCmd.Flags().Float64Var(&dsFC, "fc", 5e6, "Center frequency in Hz")

	datasetCmd.AddCommand(datasetListCmd, datasetGenerateCmd, datasetDeleteCmd)
}

func openStore() (*dataset.Store, error) {
	path := dsFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.DataFile
	}
	if path == "" {
		return nil, fmt.Errorf("no dataset file: pass --file or set data_file in %s", configPathHint())
	}
	return dataset.Open(path)
}

func configPathHint() string {
	if configPath != "" {
		return configPath
	}
	return "the configuration file"
}
