// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "uaclient",
	Short: "OPC UA command line client",
	Long: `A command line interface for OPC UA servers.

Examples:
  uaclient browse -e opc.tcp://localhost:4840
  uaclient read -e opc.tcp://localhost:4840 -n "ns=2;i=1"
  uaclient write -e opc.tcp://localhost:4840 -n "ns=2;i=1" --value 42
  uaclient subscribe -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature" --nats-url nats://localhost:4222`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringP("endpoint", "e", "opc.tcp://localhost:4840", "OPC UA server endpoint URL")
	flags.IntP("timeout", "t", 5000, "Operation timeout in milliseconds")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.String("username", "", "User name for authentication (anonymous if empty)")
	flags.String("password", "", "Password for authentication")

	for _, name := range []string{"endpoint", "timeout", "verbose", "username", "password"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("OPCUA")
	viper.AutomaticEnv()
}
