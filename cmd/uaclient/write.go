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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaclient/ua"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a value to an OPC UA node",
	Long: `Write the Value attribute of an OPC UA node.

Examples:
  uaclient write -e opc.tcp://localhost:4840 -n "ns=2;i=1" --value 42
  uaclient write -e opc.tcp://localhost:4840 -n "ns=2;s=Setpoint" --value 25.5 -T double
  uaclient write -e opc.tcp://localhost:4840 -n "ns=2;s=Label" --value "Hello World" -T string`,
	RunE: runWrite,
}

var (
	writeNodeID string
	writeValue  string
	writeType   string
)

func init() {
	writeCmd.Flags().StringVarP(&writeNodeID, "node", "n", "", "Node ID to write to")
	writeCmd.Flags().StringVar(&writeValue, "value", "", "Value to write")
	writeCmd.Flags().StringVarP(&writeType, "type", "T", "auto", "Value type: auto, bool, sbyte, byte, int16, uint16, int32, uint32, int64, uint64, float, double, string, datetime, nodeid")
	_ = writeCmd.MarkFlagRequired("node")
	_ = writeCmd.MarkFlagRequired("value")
}

func runWrite(cmd *cobra.Command, args []string) error {
	nodeID, err := ua.ParseNodeID(writeNodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID: %w", err)
	}
	variant, err := parseValue(writeValue, writeType)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), operationTimeout())
	defer cancel()

	client, err := connect(ctx, nil, false)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WriteValue(ctx, nodeID, variant); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", nodeID)
	fmt.Fprintf(out, "  Value: %s\n", formatValue(variant))
	fmt.Fprintf(out, "  Type: %s\n", variant.Type)
	return nil
}
