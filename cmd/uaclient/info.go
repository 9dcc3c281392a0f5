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
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaclient/ua"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show server and endpoint information",
	Long: `Open a session and print the server description and the endpoints
it reports.

Examples:
  uaclient info -e opc.tcp://localhost:4840`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), operationTimeout())
	defer cancel()

	client, err := connect(ctx, nil, false)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Endpoint: %s\n", client.Address())
	fmt.Fprintf(out, "Session:  %s\n\n", client.SessionID())
	endpoints, err := client.GetEndpoints(ctx)
	if err != nil {
		// Fall back to the list returned by CreateSession.
		endpoints = client.Endpoints()
	}
	printEndpoints(out, endpoints)
	return nil
}

func printEndpoints(out io.Writer, endpoints []ua.EndpointDescription) {
	if len(endpoints) == 0 {
		fmt.Fprintln(out, "No endpoints reported.")
		return
	}

	server := endpoints[0].Server
	fmt.Fprintln(out, color.CyanString("Server:"))
	fmt.Fprintf(out, "  Application URI:  %s\n", server.ApplicationURI)
	fmt.Fprintf(out, "  Product URI:      %s\n", server.ProductURI)
	fmt.Fprintf(out, "  Application Name: %s\n\n", server.ApplicationName.Text)

	fmt.Fprintln(out, color.CyanString("Endpoints (%d):", len(endpoints)))
	for i, ep := range endpoints {
		fmt.Fprintf(out, "[%d] %s\n", i+1, ep.EndpointURL)
		fmt.Fprintf(out, "    Security Mode:   %s\n", ep.SecurityMode)
		fmt.Fprintf(out, "    Security Policy: %s\n", securityPolicyName(ep.SecurityPolicyURI))
		fmt.Fprintf(out, "    Security Level:  %d\n", ep.SecurityLevel)
		for _, token := range ep.UserIdentityTokens {
			fmt.Fprintf(out, "    Token: %s (%s)\n", token.PolicyID, userTokenTypeName(token.TokenType))
		}
	}
}

func securityPolicyName(uri string) string {
	if i := strings.LastIndex(uri, "#"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func userTokenTypeName(t ua.UserTokenType) string {
	switch t {
	case ua.UserTokenTypeAnonymous:
		return "Anonymous"
	case ua.UserTokenTypeUserName:
		return "UserName"
	case ua.UserTokenTypeCertificate:
		return "Certificate"
	case ua.UserTokenTypeIssuedToken:
		return "IssuedToken"
	}
	return fmt.Sprintf("Unknown(%d)", t)
}
