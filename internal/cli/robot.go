package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fleet-visualizer/internal/dispatch"
	"fleet-visualizer/internal/model"
	"fleet-visualizer/internal/reconcile"
	"fleet-visualizer/internal/table"
)

func newRobotCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "robot",
		Short: "List, register and command robots",
	}
	cmd.AddCommand(
		newRobotListCmd(g),
		newRobotNavigateCmd(g),
		newRobotControlCmd(g),
		newRobotRegisterCmd(g),
		newRobotDeleteCmd(g),
	)
	return cmd
}

func newRobotListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List robots that report a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			robots, err := newClient(cfg).Robots(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list robots: %w", err)
			}
			tbl := table.New()
			_, ch := reconcile.New(tbl, reconcile.Options{Logger: log}).Reconcile(nil, robots)
			out := cmd.OutOrStdout()
			if err := tbl.Render(out); err != nil {
				return err
			}
			if hidden := len(robots) - ch.Created; hidden > 0 {
				fmt.Fprintf(out, "%d robot(s) without a usable id or position not shown\n", hidden)
			}
			return nil
		},
	}
}

// sendCommand selects id and reports the dispatcher's acknowledgement.
func sendCommand(cmd *cobra.Command, g *globalFlags, id string, send func(*dispatch.Dispatcher) (dispatch.Ack, error)) error {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}
	sel := &dispatch.Selection{}
	sel.Set(id)
	ack, err := send(dispatch.New(sel, newClient(cfg), log))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ack.Msg)
	if !ack.OK {
		return fmt.Errorf("robot %s: %s", id, ack.Msg)
	}
	return nil
}

func newRobotNavigateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <id> <lat> <lng>",
		Short: "Send a robot to a coordinate",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[1])
			}
			lng, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[2])
			}
			return sendCommand(cmd, g, args[0], func(d *dispatch.Dispatcher) (dispatch.Ack, error) {
				return d.Navigate(cmd.Context(), model.Position{Lat: lat, Lng: lng})
			})
		},
	}
}

func newRobotControlCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "control <id> <command>",
		Short: "Send a control command (GRAB, RESET, STOP, ...) to a robot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, g, args[0], func(d *dispatch.Dispatcher) (dispatch.Ack, error) {
				return d.Control(cmd.Context(), args[1])
			})
		},
	}
}

func newRobotRegisterCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register <device-id> <name>",
		Short: "Register a robot with the backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			if _, err := newClient(cfg).Register(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to register robot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", args[1], args[0])
			return nil
		},
	}
}

func newRobotDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a robot from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			if _, err := newClient(cfg).Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete robot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted robot %s\n", args[0])
			return nil
		},
	}
}
