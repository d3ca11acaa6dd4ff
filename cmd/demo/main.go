// Command demo wires a cobra CLI around a handful of the engine's
// end-to-end scenarios (spec.md §8), following the teacher repo's cmd/gg
// cobra-root-plus-subcommand layout (SPEC_FULL §2).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oaofoa/metacore/config"
	"github.com/oaofoa/metacore/internal/integrity"
	"github.com/oaofoa/metacore/logger/zap"
	"github.com/oaofoa/metacore/metamodel"
)

var rootCmd = &cobra.Command{
	Use:   "demo",
	Short: "metacore scenario walkthrough",
	Long:  "metacore scenario walkthrough",
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "run the Dog/Person relate-unrelate-batch-relate walkthrough",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "build the scenario model and report its integrity findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck()
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd, checkCmd)
}

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
	zap.Init(zap.Config{Level: config.App.Logger.Level})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildDogPersonModel defines the schema from spec.md §8 scenario 1-2:
// Dog(name, owner_id) 1C — owned by — 1 Person(id, name) via R1.
func buildDogPersonModel() (*metamodel.MetaModel, error) {
	m := metamodel.NewMetaModel(nil)

	person, err := m.DefineClass("Person")
	if err != nil {
		return nil, err
	}
	// The walkthrough's identifying values are small literal integers
	// (id=42), which the UNIQUE_ID type's UUID representation cannot hold;
	// INTEGER carries the same key-copy semantics for this demo.
	if err := person.AppendAttribute("id", metamodel.INTEGER); err != nil {
		return nil, err
	}
	if err := person.AppendAttribute("name", metamodel.STRING); err != nil {
		return nil, err
	}
	if err := person.DefineUniqueIdentifier("ID_person", "id"); err != nil {
		return nil, err
	}

	dog, err := m.DefineClass("Dog")
	if err != nil {
		return nil, err
	}
	if err := dog.AppendAttribute("name", metamodel.STRING); err != nil {
		return nil, err
	}
	if err := dog.AppendAttribute("owner_id", metamodel.INTEGER); err != nil {
		return nil, err
	}

	_, err = m.DefineAssociation(1,
		metamodel.AssociationEnd{Class: dog, Phrase: "owned by", Conditional: true, Many: false, Keys: []string{"owner_id"}},
		metamodel.AssociationEnd{Class: person, Phrase: "owns", Conditional: true, Many: true, Keys: []string{"id"}},
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func runScenario() error {
	m, err := buildDogPersonModel()
	if err != nil {
		return err
	}
	person, _ := m.Class("Person")
	dog, _ := m.Class("Dog")

	p, err := person.New(nil, map[string]any{"id": 42, "name": "A"})
	if err != nil {
		return err
	}
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	if err != nil {
		return err
	}

	ok, err := m.Relate(d, p, 1, "owned by")
	if err != nil {
		return err
	}
	fmt.Printf("relate(d,p,1) = %v, d.owner_id = %v\n", ok, d.MustGet("owner_id"))

	ok, err = m.Unrelate(d, p, 1, "owned by")
	if err != nil {
		return err
	}
	fmt.Printf("unrelate(d,p,1) = %v, d.owner_id = %v\n", ok, d.MustGet("owner_id"))

	d2, err := dog.New(nil, map[string]any{"name": "Spot", "owner_id": 42})
	if err != nil {
		return err
	}
	neighbors, err := dog.Navigate(d2, "Person", 1, "owned by")
	if err != nil {
		return err
	}
	fmt.Printf("batch-related d2 to %d person(s) via owner_id=42\n", len(neighbors))
	return nil
}

func runCheck() error {
	m, err := buildDogPersonModel()
	if err != nil {
		return err
	}
	person, _ := m.Class("Person")
	dog, _ := m.Class("Dog")
	if _, err := person.New(nil, map[string]any{"id": 42, "name": "A"}); err != nil {
		return err
	}
	if _, err := dog.New(nil, map[string]any{"name": "Rex"}); err != nil {
		return err
	}

	report := integrity.New(m).Check()
	fmt.Printf("consistent = %v\n", report.Consistent())
	for _, f := range report.Findings {
		fmt.Printf("  [%s] %s: %s\n", f.Kind, f.Class, f.Message)
	}
	return nil
}
