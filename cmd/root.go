/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	checkCmd "github.com/mpapenbr/docflow-session-go/pkg/cmd/check"
	loginCmd "github.com/mpapenbr/docflow-session-go/pkg/cmd/login"
	logoutCmd "github.com/mpapenbr/docflow-session-go/pkg/cmd/logout"
	requestCmd "github.com/mpapenbr/docflow-session-go/pkg/cmd/request"
	whoamiCmd "github.com/mpapenbr/docflow-session-go/pkg/cmd/whoami"
	"github.com/mpapenbr/docflow-session-go/pkg/config"
	"github.com/mpapenbr/docflow-session-go/pkg/token"
	"github.com/mpapenbr/docflow-session-go/version"
)

const envPrefix = "DFS"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "dfs",
	Short:         "Session and authorization client for the document workflow",
	Long:          ``,
	Version:       version.FullVersion,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.dfs.yml)")

	pf.StringVar(&config.LogLevel, "log-level", "warn",
		"controls the log level (debug, info, warn, error, fatal)")
	pf.StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format (json, text)")
	pf.StringVar(&config.LogFilter, "log-filter", "",
		"zapfilter rules, e.g. \"debug:tokenstore,apiclient *:*\"")
	pf.BoolVar(&config.EnableTelemetry, "enable-telemetry", false,
		"enables telemetry")
	pf.StringVar(&config.TelemetryEndpoint, "telemetry-endpoint", "localhost:4317",
		"Endpoint that receives open telemetry data")
	pf.BoolVar(&config.TelemetryStdout, "telemetry-stdout", false,
		"write telemetry data to stdout instead of sending it")
	pf.StringVar(&config.WaitForServices, "wait-for-services", "15s",
		"Duration to wait for other services to be ready")

	pf.StringVar(&config.StorageType, "storage", "file",
		"storage backend for the session (file, memory, nats, redis)")
	pf.StringVar(&config.StorageDir, "storage-dir", "",
		"directory of the file storage (default is the user config dir)")
	pf.StringVar(&config.NatsURL, "nats-url", "nats://localhost:4222",
		"URL of the NATS server")
	pf.StringVar(&config.RedisAddr, "redis-addr", "localhost:6379",
		"address of the redis server")
	pf.StringVar(&config.RedisPassword, "redis-password", "",
		"password for the redis server")

	pf.StringVar(&config.CognitoDomain, "cognito-domain", "",
		"domain of the hosted login, e.g. auth.example.com")
	pf.StringVar(&config.IssuerURL, "issuer-url", "",
		"OIDC issuer; if set the endpoints are discovered")
	pf.StringVar(&config.ClientID, "client-id", "",
		"OAuth2 client id")
	pf.StringVar(&config.RedirectURI, "redirect-uri", "",
		"OAuth2 redirect uri (default <app-host origin>/auth/callback)")
	pf.StringVar(&config.LogoutURI, "logout-uri", "",
		"uri to return to after logout (default <app-host origin>/)")
	pf.StringSliceVar(&config.Scopes, "scopes", config.DefaultScopes,
		"requested scopes")
	pf.StringVar(&config.APIBaseURL, "api-base-url", "",
		"base URL of the document API (default <app-host origin>/api)")
	pf.StringVar(&config.AppHost, "app-host", "localhost:3000",
		"host used to derive missing uris")
	pf.StringVar(&config.GroupsClaimPath, "groups-claim-path", token.DefaultGroupsPath,
		"JSONPath of the group list inside the id token")

	// add commands here
	rootCmd.AddCommand(loginCmd.NewLoginCmd())
	rootCmd.AddCommand(logoutCmd.NewLogoutCmd())
	rootCmd.AddCommand(whoamiCmd.NewWhoamiCmd())
	rootCmd.AddCommand(checkCmd.NewCheckCmd())
	rootCmd.AddCommand(requestCmd.NewRequestCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".dfs" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dfs")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --client-id to DFS_CLIENT_ID
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, flagValue(val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}

// flagValue renders config file lists the way slice flags expect them
func flagValue(val any) string {
	if list, ok := val.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", val)
}
