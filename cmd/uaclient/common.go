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
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/uaclient"
	"github.com/edgeo-scada/uaclient/ua"
)

func operationTimeout() time.Duration {
	return time.Duration(viper.GetInt("timeout")) * time.Millisecond
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildClientOptions creates client options from flags, env and config.
func buildClientOptions(reg prometheus.Registerer, autoReconnect bool) ([]uaclient.Option, error) {
	opts := []uaclient.Option{
		uaclient.WithTimeout(operationTimeout()),
		uaclient.WithLogger(newLogger()),
		uaclient.WithAutoReconnect(autoReconnect),
	}

	user, pass := viper.GetString("username"), viper.GetString("password")
	switch {
	case user != "":
		opts = append(opts, uaclient.WithUserPasswordAuth(user, pass))
	case pass != "":
		return nil, fmt.Errorf("--password requires --username")
	default:
		opts = append(opts, uaclient.WithAnonymousAuth())
	}

	if reg != nil {
		opts = append(opts, uaclient.WithRegisterer(reg))
	}
	return opts, nil
}

// connect creates a client and activates a session on it.
func connect(ctx context.Context, reg prometheus.Registerer, autoReconnect bool) (*uaclient.Client, error) {
	opts, err := buildClientOptions(reg, autoReconnect)
	if err != nil {
		return nil, err
	}
	client, err := uaclient.NewClient(viper.GetString("endpoint"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	if err := client.ConnectAndActivateSession(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

func parseNodeIDs(ids []string) ([]ua.NodeID, error) {
	nodes := make([]ua.NodeID, len(ids))
	for i, s := range ids {
		n, err := ua.ParseNodeID(s)
		if err != nil {
			return nil, fmt.Errorf("invalid node ID %q: %w", s, err)
		}
		nodes[i] = n
	}
	return nodes, nil
}

func parseAttributeID(name string) (ua.AttributeID, error) {
	switch strings.ToLower(name) {
	case "nodeid":
		return ua.AttributeNodeID, nil
	case "nodeclass":
		return ua.AttributeNodeClass, nil
	case "browsename":
		return ua.AttributeBrowseName, nil
	case "displayname":
		return ua.AttributeDisplayName, nil
	case "description":
		return ua.AttributeDescription, nil
	case "value", "":
		return ua.AttributeValue, nil
	case "datatype":
		return ua.AttributeDataType, nil
	case "valuerank":
		return ua.AttributeValueRank, nil
	case "arraydimensions":
		return ua.AttributeArrayDimensions, nil
	case "accesslevel":
		return ua.AttributeAccessLevel, nil
	}
	if id, err := strconv.ParseUint(name, 10, 32); err == nil && id > 0 {
		return ua.AttributeID(id), nil
	}
	return 0, fmt.Errorf("unknown attribute: %s", name)
}

func parseDirection(s string) (ua.BrowseDirection, error) {
	switch strings.ToLower(s) {
	case "forward", "":
		return ua.BrowseDirectionForward, nil
	case "inverse":
		return ua.BrowseDirectionInverse, nil
	case "both":
		return ua.BrowseDirectionBoth, nil
	}
	return 0, fmt.Errorf("invalid direction: %s", s)
}

// parseValue builds a variant of the named type from its text form.
func parseValue(value, typeName string) (*ua.Variant, error) {
	typeName = strings.ToLower(typeName)
	if typeName == "auto" || typeName == "" {
		typeName = detectType(value)
	}

	var v interface{}
	switch typeName {
	case "bool", "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, err
		}
		v = b
	case "sbyte", "int8":
		n, err := strconv.ParseInt(value, 10, 8)
		if err != nil {
			return nil, err
		}
		v = int8(n)
	case "byte", "uint8":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, err
		}
		v = uint8(n)
	case "int16":
		n, err := strconv.ParseInt(value, 10, 16)
		if err != nil {
			return nil, err
		}
		v = int16(n)
	case "uint16":
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, err
		}
		v = uint16(n)
	case "int32", "int":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return nil, err
		}
		v = int32(n)
	case "uint32", "uint":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, err
		}
		v = uint32(n)
	case "int64":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		v = n
	case "uint64":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, err
		}
		v = n
	case "float", "float32":
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		v = float32(f)
	case "double", "float64":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		v = f
	case "string":
		v = value
	case "datetime":
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, err
		}
		v = t
	case "nodeid":
		n, err := ua.ParseNodeID(value)
		if err != nil {
			return nil, err
		}
		v = n
	default:
		return nil, fmt.Errorf("unknown type: %s", typeName)
	}
	variant := ua.NewVariant(v)
	return &variant, nil
}

func detectType(value string) string {
	if value == "true" || value == "false" {
		return "bool"
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "int64"
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return "double"
	}
	return "string"
}

func formatStatus(code ua.StatusCode) string {
	switch {
	case code.IsGood():
		return color.GreenString(code.String())
	case code.IsUncertain():
		return color.YellowString(code.String())
	}
	return color.RedString(code.String())
}

func formatValue(v *ua.Variant) string {
	if v == nil || v.Value == nil {
		return color.HiBlackString("<null>")
	}
	switch x := v.Value.(type) {
	case ua.NodeID:
		return x.String()
	case ua.LocalizedText:
		return x.Text
	case ua.QualifiedName:
		return x.Name
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v.Value)
}
