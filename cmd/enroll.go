package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [student-code] [name] [photo]...",
	Short: "Enroll a student from reference photos",
	Long: `Enroll a single student. Provide the student code, the full name and the
reference photos (three by default). Each photo must contain exactly one
well-lit, centered face.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runEnroll,
}

var enrollBulkCmd = &cobra.Command{
	Use:   "enroll-bulk [directory]",
	Short: "Enroll students from a directory of photo folders",
	Long: `Enroll many students at once. The directory must contain one subdirectory
per student named CODE_Full Name (for example "STU-042_Adela Novakova"),
each holding the student's reference photos.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollBulk,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(enrollBulkCmd)

	for _, c := range []*cobra.Command{enrollCmd, enrollBulkCmd} {
		c.Flags().String("class", "", "Class the student belongs to")
		c.Flags().String("section", "", "Section within the class")
	}
	enrollCmd.Flags().String("phone", "", "Guardian phone number for SMS notifications")
}

// isPhotoFile reports whether the file looks like a supported image.
func isPhotoFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
		return true
	}
	return false
}

func readPhotos(paths []string) ([][]byte, error) {
	photos := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read photo %s: %w", path, err)
		}
		photos = append(photos, data)
	}
	return photos, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	photos, err := readPhotos(args[2:])
	if err != nil {
		return err
	}

	student, checks, err := a.service.Enroll(ctx, recognition.EnrollRequest{
		StudentCode:   args[0],
		Name:          args[1],
		Class:         mustGetString(cmd, "class"),
		Section:       mustGetString(cmd, "section"),
		GuardianPhone: mustGetString(cmd, "phone"),
		Photos:        photos,
	})
	if err != nil {
		for _, check := range checks {
			if !check.Valid {
				fmt.Printf("Photo %d: %s\n", check.Photo, check.Error)
			}
		}
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s (%s)\n", student.Name, student.StudentCode)
	return nil
}

// studentDir holds one parsed bulk enrollment folder.
type studentDir struct {
	code   string
	name   string
	photos []string
}

// collectStudentDirs parses CODE_Name subdirectories and their photos.
func collectStudentDirs(root string) ([]studentDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var dirs []studentDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		code, name, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			fmt.Printf("Skipping %s: directory name must be CODE_Full Name\n", entry.Name())
			continue
		}

		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		var photos []string
		for _, file := range files {
			if !file.IsDir() && isPhotoFile(file.Name()) {
				photos = append(photos, filepath.Join(dir, file.Name()))
			}
		}
		sort.Strings(photos)
		dirs = append(dirs, studentDir{code: code, name: name, photos: photos})
	}
	return dirs, nil
}

func runEnrollBulk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	dirs, err := collectStudentDirs(args[0])
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no student directories found in %s", args[0])
	}

	class := mustGetString(cmd, "class")
	section := mustGetString(cmd, "section")

	bar := newProgressBar(len(dirs), "Enrolling students", "students")

	enrolled := 0
	var failures []string
	for _, dir := range dirs {
		photos, err := readPhotos(dir.photos)
		if err == nil {
			_, _, err = a.service.Enroll(ctx, recognition.EnrollRequest{
				StudentCode: dir.code,
				Name:        dir.name,
				Class:       class,
				Section:     section,
				Photos:      photos,
			})
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", dir.code, err))
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Enrolled %d of %d students\n", enrolled, len(dirs))
	for _, failure := range failures {
		fmt.Printf("  failed %s\n", failure)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d enrollments failed", len(failures))
	}
	return nil
}
