package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
)

func datasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the tests available to the API key",
		Args:  cobra.NoArgs,
		RunE:  runDatasets,
	}
	addServiceFlags(cmd)
	return cmd
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE:  runProjectsList,
	}
	addServiceFlags(list)

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runProjectsCreate,
	}
	create.Flags().String("team", "", "Team ID")
	create.Flags().String("description", "", "Project description")
	addServiceFlags(create)

	cmd.AddCommand(list, create)
	return cmd
}

func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the owner of the API key",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
	addServiceFlags(cmd)
	return cmd
}

func submitClassicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit-classic <file.json>",
		Short: "Store the results of an evaluation computed elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmitClassic,
	}
	addServiceFlags(cmd)
	return cmd
}

func runDatasets(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(v, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, appI18n.Tp(ctx, "DatasetsAvailable", len(datasets)))
	for _, d := range datasets {
		fmt.Fprintf(out, "  %-24s %s\n", d.ID, d.Name)
	}
	return nil
}

func runProjectsList(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(v, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, appI18n.Tp(ctx, "ProjectsAvailable", len(projects)))
	for _, p := range projects {
		fmt.Fprintf(out, "  %-38s %-24s %s\n", p.ID, p.Name, p.Description)
	}
	return nil
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(v, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	p, err := c.CreateProject(ctx, args[0], v.GetString("team"), v.GetString("description"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(ctx, "ProjectCreated", map[string]any{"Name": p.Name, "ID": p.ID}))
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(v, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	name := me.User.FirstName + " " + me.User.LastName
	fmt.Fprintln(out, appI18n.Td(ctx, "LoggedInAs", map[string]any{"Name": name, "Email": me.User.Email}))
	for _, t := range me.Teams {
		fmt.Fprintln(out, "  "+appI18n.Td(ctx, "TeamMembership", map[string]any{"Name": t.Name, "Role": t.Role}))
	}
	return nil
}

func runSubmitClassic(cmd *cobra.Command, args []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var req model.ClassicEvalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	c, err := newClient(v, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	res, err := c.SubmitClassicEval(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(ctx, "ClassicSubmitted", map[string]any{"ID": res.ID, "Count": res.ResponseCount}))
	return nil
}
