package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students [query]",
	Short: "List enrolled students",
	Long: `List the active student roster. An optional query filters by name,
ignoring case and diacritics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStudents,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate [student-code]",
	Short: "Remove a student from the active roster",
	Long: `Deactivate a student. The attendance history is kept, but the student
stops matching at the kiosk and the code becomes available again.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeactivate,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	rootCmd.AddCommand(deactivateCmd)
}

func runStudents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var roster []string
	if len(args) == 1 {
		found, err := a.students.SearchByName(ctx, args[0])
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, s := range found {
			roster = append(roster, fmt.Sprintf("%-12s %-30s %s %s", s.StudentCode, s.Name, s.Class, s.Section))
		}
	} else {
		all, err := a.students.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("listing students failed: %w", err)
		}
		for _, s := range all {
			roster = append(roster, fmt.Sprintf("%-12s %-30s %s %s", s.StudentCode, s.Name, s.Class, s.Section))
		}
	}

	if len(roster) == 0 {
		fmt.Println("No students found")
		return nil
	}
	for _, line := range roster {
		fmt.Println(line)
	}
	fmt.Printf("\n%d students\n", len(roster))
	return nil
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	code := args[0]
	student, err := a.students.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load student: %w", err)
	}
	if student == nil {
		return fmt.Errorf("student %s not found", code)
	}

	if err := a.students.Deactivate(ctx, code); err != nil {
		return fmt.Errorf("failed to deactivate: %w", err)
	}
	a.index.Remove(student.ID)

	fmt.Printf("Deactivated %s (%s)\n", student.Name, student.StudentCode)
	return nil
}
