package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/grading"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

var errTestsFailed = errors.New("tests failed")

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run a Python file on the daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var (
	gradeExpect []string
	gradeCases  string
)

var gradeCmd = &cobra.Command{
	Use:   "grade <file|->",
	Short: "Run a Python file and grade its output lines",
	Long: `Run a Python file and compare each output line with the expected output
of the test case at the same position.

Cases come from repeated --expect flags or a JSON file of
[{"input": "", "expectedOutput": "..."}] given with --cases.`,
	Args: cobra.ExactArgs(1),
	RunE: runGrade,
}

var (
	hintQuestion string
	hintTemplate string
)

var hintCmd = &cobra.Command{
	Use:   "hint <file|->",
	Short: "Ask the daemon for a hint on a Python file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHint,
}

var (
	submitSelected string
	submitCorrect  string
	submitUsername string
)

var submitCmd = &cobra.Command{
	Use:   "submit <exercise-id>",
	Short: "Record a quiz answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var statsCmd = &cobra.Command{
	Use:   "stats <exercise-id>",
	Short: "Show answer statistics for a quiz",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	gradeCmd.Flags().StringArrayVar(&gradeExpect, "expect", nil, "Expected output line (repeatable)")
	gradeCmd.Flags().StringVar(&gradeCases, "cases", "", "JSON file with test cases")

	hintCmd.Flags().StringVarP(&hintQuestion, "question", "q", "", "Exercise prompt")
	hintCmd.Flags().StringVar(&hintTemplate, "template", "", "File with the starting code")

	submitCmd.Flags().StringVar(&submitSelected, "selected", "", "Selected answer text")
	submitCmd.Flags().StringVar(&submitCorrect, "correct", "", "Correct answer text")
	submitCmd.Flags().StringVarP(&submitUsername, "username", "u", "", "Username (default: auth.default_username)")
	_ = submitCmd.MarkFlagRequired("selected")
	_ = submitCmd.MarkFlagRequired("correct")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	code, err := readSource(args[0])
	if err != nil {
		return err
	}

	resp, err := remote.NewExecutionClient(cfg.Remote()).Execute(cmd.Context(), remote.ExecuteRequest{Code: code})
	if resp != nil && resp.Output != "" {
		fmt.Fprint(cmd.OutOrStdout(), resp.Output)
	}
	if err != nil {
		return errors.New(remote.Message(err))
	}
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cases, err := loadCases()
	if err != nil {
		return err
	}
	code, err := readSource(args[0])
	if err != nil {
		return err
	}

	resp, err := remote.NewExecutionClient(cfg.Remote()).Execute(cmd.Context(), remote.ExecuteRequest{Code: code})
	if err != nil {
		return errors.New(remote.Message(err))
	}

	verdict := grading.Grade(resp.Output, cases)
	printVerdict(cmd.OutOrStdout(), verdict)
	if !verdict.AllPassed() {
		return errTestsFailed
	}
	return nil
}

func loadCases() ([]domain.TestCase, error) {
	var cases []domain.TestCase
	if gradeCases != "" {
		data, err := os.ReadFile(gradeCases)
		if err != nil {
			return nil, fmt.Errorf("read cases: %w", err)
		}
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("parse cases: %w", err)
		}
	}
	for _, line := range gradeExpect {
		cases = append(cases, domain.TestCase{ExpectedOutput: line})
	}
	if len(cases) == 0 {
		return nil, errors.New("no test cases (use --expect or --cases)")
	}
	return cases, nil
}

func printVerdict(w io.Writer, v grading.Verdict) {
	for i, r := range v.Results {
		mark := "✓"
		if !r.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s case %d: expected %q", mark, i+1, r.Expected)
		if !r.Passed {
			fmt.Fprintf(w, ", got %q", r.Actual)
		}
		fmt.Fprintln(w)
	}
	if v.Mismatch != nil {
		fmt.Fprintln(w, v.Mismatch.String())
	}
	fmt.Fprintln(w, v.Summary())
}

func runHint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	code, err := readSource(args[0])
	if err != nil {
		return err
	}
	req := remote.HintRequest{CurrentCode: code, Question: hintQuestion}
	if hintTemplate != "" {
		if req.TemplateCode, err = readSource(hintTemplate); err != nil {
			return err
		}
	}

	resp, err := remote.NewHintClient(cfg.Remote()).GenerateHint(cmd.Context(), req)
	if err != nil {
		return errors.New(remote.Message(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Hint)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	username := submitUsername
	if username == "" {
		username = cfg.Auth.DefaultUsername
	}

	resp, err := remote.NewSubmissionClient(cfg.Remote()).SubmitAnswer(cmd.Context(), remote.SubmitRequest{
		ExerciseID:     args[0],
		SelectedAnswer: submitSelected,
		CorrectAnswer:  submitCorrect,
		Username:       username,
	})
	if err != nil {
		return errors.New(remote.Message(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Message)
	if resp.SubmissionID != "" {
		fmt.Fprintf(out, "Submission: %s\n", resp.SubmissionID)
	}
	if submission.IsCorrectAnswer(submitSelected, submitCorrect) {
		fmt.Fprintln(out, "Correct ✓")
	} else {
		fmt.Fprintln(out, "Incorrect ✗")
	}
	return nil
}

// statsReply mirrors GET /api/mcq/{id}/stats
type statsReply struct {
	submission.Stats
	Accuracy float64 `json:"accuracy"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var st statsReply
	path := "/api/mcq/" + url.PathEscape(args[0]) + "/stats"
	if err := newDaemonClient(cfg).do(cmd.Context(), http.MethodGet, path, nil, &st); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exercise: %s\n", args[0])
	fmt.Fprintf(out, "Answers:  %d (%d correct)\n", st.Total, st.Correct)
	fmt.Fprintf(out, "Accuracy: %s %.0f%%\n", renderProgressBar(st.Accuracy, 20), st.Accuracy*100)

	if len(st.Answers) == 0 {
		return nil
	}
	choices := make([]string, 0, len(st.Answers))
	for choice := range st.Answers {
		choices = append(choices, choice)
	}
	sort.Slice(choices, func(i, j int) bool {
		if st.Answers[choices[i]] != st.Answers[choices[j]] {
			return st.Answers[choices[i]] > st.Answers[choices[j]]
		}
		return choices[i] < choices[j]
	})
	fmt.Fprintln(out, "\nBy answer:")
	for _, choice := range choices {
		fmt.Fprintf(out, "  %-20s %d\n", choice, st.Answers[choice])
	}
	return nil
}
