package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iverson3/xvalkey/cluster"
	"github.com/iverson3/xvalkey/config"
	"github.com/iverson3/xvalkey/driver"
	"github.com/iverson3/xvalkey/lib/logger"
)

var (
	flagConfig   string
	flagAddrs    []string
	flagCluster  bool
	flagPassword string
	flagLogLevel string
)

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	cfg := config.Default()
	cfg.Addrs = flagAddrs
	cfg.Cluster = flagCluster
	cfg.Password = flagPassword
	cfg.LogLevel = flagLogLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openConn() (*driver.Conn, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return driver.Open(cfg)
}

func main() {
	root := &cobra.Command{
		Use:   "xvalkey-cli",
		Short: "Command line client for sharded key-value clusters",
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to yaml config file")
	root.PersistentFlags().StringSliceVarP(&flagAddrs, "addr", "a", []string{"127.0.0.1:6399"}, "node address, repeatable")
	root.PersistentFlags().BoolVar(&flagCluster, "cluster", false, "treat addresses as cluster seeds")
	root.PersistentFlags().StringVarP(&flagPassword, "password", "p", "", "AUTH password")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug/info/warn/error")

	root.AddCommand(replCommand(), pingCommand(), infoCommand(), slotsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive command prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openConn()
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					fmt.Print("> ")
					continue
				}
				if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
					return nil
				}
				v, err := conn.Do(strings.Fields(line)...)
				if err != nil {
					fmt.Println("(error)", err)
				} else {
					printValue(v, "")
				}
				fmt.Print("> ")
			}
			return scanner.Err()
		},
	}
}

func printValue(v interface{}, indent string) {
	switch val := v.(type) {
	case nil:
		fmt.Println(indent + "(nil)")
	case int64:
		fmt.Printf("%s(integer) %d\n", indent, val)
	case string:
		fmt.Println(indent + val)
	case []byte:
		fmt.Printf("%s%q\n", indent, string(val))
	case []interface{}:
		if len(val) == 0 {
			fmt.Println(indent + "(empty array)")
			return
		}
		for i, elem := range val {
			fmt.Printf("%s%d) ", indent, i+1)
			printValue(elem, "")
		}
	default:
		fmt.Printf("%s%v\n", indent, val)
	}
}

func pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that every known node answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openConn()
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			nodes, err := conn.Nodes()
			if err != nil {
				return err
			}
			for _, node := range nodes {
				status, err := conn.PingNode(node)
				if err != nil {
					fmt.Printf("%s\tunreachable: %v\n", node, err)
					continue
				}
				fmt.Printf("%s\t%s\n", node, status)
			}
			return nil
		},
	}
}

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print INFO from every known node",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openConn()
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			info, err := conn.Info()
			if err != nil {
				return err
			}
			nodes := make([]string, 0, len(info))
			for node := range info {
				nodes = append(nodes, node)
			}
			sort.Strings(nodes)
			for _, node := range nodes {
				fmt.Printf("# %s\n%s\n", node, info[node])
			}
			return nil
		},
	}
}

func slotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Print the slot table of a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Cluster {
				return fmt.Errorf("slots requires --cluster")
			}
			logger.Init(cfg.LogLevel)

			c, err := cluster.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			topo, err := c.Topology()
			if err != nil {
				return err
			}
			for _, r := range topo.Ranges() {
				node, _ := topo.Node(r.Primary)
				line := fmt.Sprintf("%5d - %5d  %s", r.Start, r.End, r.Primary)
				if node != nil && len(node.Replicas) > 0 {
					line += "  replicas: " + strings.Join(node.Replicas, ",")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
