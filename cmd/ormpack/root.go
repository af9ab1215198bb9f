package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AndrewDonelson/ormpack"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ormpack",
		Short: "inspect ormpack payloads",
		Long: fmt.Sprintf(`ormpack (%s)

Decode tagged MessagePack record payloads without the record types,
compute wire type ids and look up the time zone table.`, ormpack.Version()),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of ormpack",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ormpack %s\n", ormpack.Version())
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(typeIDCmd)
	RootCmd.AddCommand(zonesCmd)
	RootCmd.AddCommand(versionCmd)
}

// initConfig loads .env files and maps ORMPACK_* environment variables onto
// flag names.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("ormpack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the flags of cmd to viper so env values apply.
func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
