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
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaclient"
	"github.com/edgeo-scada/uaclient/ua"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the OPC UA address space",
	Long: `Browse nodes in the OPC UA server address space.

Examples:
  uaclient browse -e opc.tcp://localhost:4840
  uaclient browse -e opc.tcp://localhost:4840 -n "i=85" --depth 2
  uaclient browse -e opc.tcp://localhost:4840 -n "ns=2;s=MyNode" -d inverse`,
	RunE: runBrowse,
}

var (
	browseNodeID    string
	browseDirection string
	browseDepth     int
)

func init() {
	browseCmd.Flags().StringVarP(&browseNodeID, "node", "n", "i=84", "Node ID to browse from (default: Root)")
	browseCmd.Flags().StringVarP(&browseDirection, "direction", "d", "forward", "Browse direction: forward, inverse, both")
	browseCmd.Flags().IntVar(&browseDepth, "depth", 1, "Browse depth (1 = immediate children only)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	nodeID, err := ua.ParseNodeID(browseNodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID: %w", err)
	}
	direction, err := parseDirection(browseDirection)
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browsing from: %s (%s)\n\n", nodeID, browseDirection)
	return browseTree(ctx, client, cmd, nodeID, direction, 0)
}

func browseTree(ctx context.Context, client *uaclient.Client, cmd *cobra.Command, nodeID ua.NodeID, direction ua.BrowseDirection, level int) error {
	refs, err := client.BrowseNode(ctx, nodeID, direction)
	if err != nil {
		return fmt.Errorf("browse %s failed: %w", nodeID, err)
	}

	out := cmd.OutOrStdout()
	indent := strings.Repeat("  ", level)
	for _, ref := range refs {
		fmt.Fprintf(out, "%s%s %s [%s]\n", indent,
			color.CyanString(ref.DisplayName.Text), ref.NodeID, ref.NodeClass)
		if level+1 < browseDepth && ref.IsForward {
			if err := browseTree(ctx, client, cmd, ref.NodeID, direction, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}
