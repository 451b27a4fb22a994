package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-drivalyze"
)

type selectionFlags struct {
	brand, model, fuelType, transmission string
	year                                 int
	dataset, engine, expression          string
}

func (f *selectionFlags) bind(cmd *cobra.Command, withFuel bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.brand, "brand", "", "car brand")
	flags.StringVar(&f.model, "model", "", "car model")
	if withFuel {
		flags.StringVar(&f.fuelType, "fuel-type", "", "fuel type")
		flags.IntVar(&f.year, "year", 0, "model year")
		flags.StringVar(&f.transmission, "transmission", "", "transmission")
		flags.StringVar(&f.engine, "engine", "", "pricing engine for --dataset: expr, cel or js")
		flags.StringVar(&f.expression, "expr", "", "pricing expression for --dataset")
	}
	flags.StringVar(&f.dataset, "dataset", "", "answer from a local catalog file instead of the service")
}

type step struct {
	field drivalyze.Field
	value string
	set   func(*drivalyze.Resolver)
}

// steps lists the fields given on the command line in cascade order.
func (f *selectionFlags) steps() []step {
	var steps []step
	add := func(field drivalyze.Field, value string, set func(*drivalyze.Resolver)) {
		if value != "" {
			steps = append(steps, step{field: field, value: value, set: set})
		}
	}
	add(drivalyze.FieldBrand, f.brand, func(r *drivalyze.Resolver) { r.SetBrand(f.brand) })
	add(drivalyze.FieldModel, f.model, func(r *drivalyze.Resolver) { r.SetModel(f.model) })
	add(drivalyze.FieldFuelType, f.fuelType, func(r *drivalyze.Resolver) { r.SetFuelType(f.fuelType) })
	if f.year > 0 {
		add(drivalyze.FieldYear, strconv.Itoa(f.year), func(r *drivalyze.Resolver) { r.SetYear(f.year) })
	}
	add(drivalyze.FieldTransmission, f.transmission, func(r *drivalyze.Resolver) { r.SetTransmission(f.transmission) })
	return steps
}

// fill drives the resolver through the flagged fields like a user picking
// from the lists: each value must be among the options currently offered,
// and the cascade settles before the next field is chosen.
func (f *selectionFlags) fill(cmd *cobra.Command, r *drivalyze.Resolver) error {
	loadErr := r.Load(cmd.Context())
	r.Wait()
	loaded := r.State()
	for _, field := range []drivalyze.Field{drivalyze.FieldBrand, drivalyze.FieldYear, drivalyze.FieldTransmission} {
		if msg := loaded.Message(field); msg != "" && loadErr != nil {
			return fmt.Errorf("%s: %w", msg, loadErr)
		}
	}
	if loadErr != nil {
		return loadErr
	}
	for _, s := range f.steps() {
		options := r.State().OptionsFor(s.field)
		if !options.Contains(s.value) {
			return fmt.Errorf("%s %q is not available; choose one of: %s",
				s.field, s.value, strings.Join(options.Values(), ", "))
		}
		s.set(r)
		r.Wait()
		st := r.State()
		for _, next := range drivalyze.Downstream(s.field) {
			if err := stateError(st, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func stateError(st drivalyze.State, field drivalyze.Field) error {
	if msg := st.Message(field); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func newOptionsCmd(a *app) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:       "options <field>",
		Short:     "List the valid values for a field given the upstream choices",
		Example:   "  drivalyze options model --brand Honda\n  drivalyze options fuel_type --brand Honda --model City",
		Args:      cobra.ExactArgs(1),
		ValidArgs: fieldNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := drivalyze.ParseField(args[0])
			if err != nil {
				return err
			}
			fetcher, _, err := a.backend(sel.dataset, "", "")
			if err != nil {
				return err
			}
			r := drivalyze.NewResolver(fetcher, nil, drivalyze.WithLogger(a.logger))
			defer r.Close()
			if err := sel.fill(cmd, r); err != nil {
				return err
			}
			st := r.State()
			if upstream, ok := field.Upstream(); ok && st.Selection.Get(upstream) == "" {
				return fmt.Errorf("choose a %s first", upstream)
			}
			for _, value := range st.OptionsFor(field).Values() {
				a.printf("%s\n", value)
			}
			return nil
		},
	}
	sel.bind(cmd, false)
	return cmd
}

func fieldNames() []string {
	names := make([]string, 0, len(drivalyze.Fields()))
	for _, field := range drivalyze.Fields() {
		names = append(names, field.String())
	}
	return names
}
