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
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaclient/ua"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read values from OPC UA nodes",
	Long: `Read attribute values from OPC UA nodes.

Examples:
  uaclient read -e opc.tcp://localhost:4840 -n "ns=2;i=1"
  uaclient read -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature" -a DisplayName
  uaclient read -e opc.tcp://localhost:4840 -n "i=2258" -n "i=2259"`,
	RunE: runRead,
}

var (
	readNodeIDs   []string
	readAttribute string
)

func init() {
	readCmd.Flags().StringArrayVarP(&readNodeIDs, "node", "n", nil, "Node ID(s) to read (can specify multiple)")
	readCmd.Flags().StringVarP(&readAttribute, "attribute", "a", "Value", "Attribute to read: NodeId, NodeClass, BrowseName, DisplayName, Value, DataType, etc.")
	_ = readCmd.MarkFlagRequired("node")
}

func runRead(cmd *cobra.Command, args []string) error {
	nodes, err := parseNodeIDs(readNodeIDs)
	if err != nil {
		return err
	}
	attrID, err := parseAttributeID(readAttribute)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), operationTimeout())
	defer cancel()

	client, err := connect(ctx, nil, false)
	if err != nil {
		return err
	}
	defer client.Close()

	nodesToRead := make([]ua.ReadValueID, len(nodes))
	for i, n := range nodes {
		nodesToRead[i] = ua.ReadValueID{NodeID: n, AttributeID: attrID}
	}

	results, err := client.Read(ctx, nodesToRead)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, result := range results {
		fmt.Fprintf(out, "Node: %s\n", nodes[i])
		fmt.Fprintf(out, "  Attribute: %s\n", readAttribute)
		if !result.StatusCode.IsBad() {
			fmt.Fprintf(out, "  Value: %s\n", formatValue(result.Value))
			if result.Value != nil {
				fmt.Fprintf(out, "  Type: %s\n", result.Value.Type)
			}
			if !result.SourceTimestamp.IsZero() {
				fmt.Fprintf(out, "  SourceTimestamp: %s\n", result.SourceTimestamp.Format(time.RFC3339Nano))
			}
			if !result.ServerTimestamp.IsZero() {
				fmt.Fprintf(out, "  ServerTimestamp: %s\n", result.ServerTimestamp.Format(time.RFC3339Nano))
			}
		}
		fmt.Fprintf(out, "  Status: %s\n\n", formatStatus(result.StatusCode))
	}
	return nil
}
