// Package term is the terminal front-end for interactive SKU resolution.
// It drives the resolution engine's request/decision protocol over stdin;
// the engine itself never reads the terminal.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ordersync/internal/resolve"
)

const rule = "================================================================================"

// Prompter implements resolve.Decider with the paginated search/select
// protocol. Input is any io.Reader so tests can script a session.
type Prompter struct {
	in       *bufio.Scanner
	out      io.Writer
	searcher resolve.Searcher
	pageSize int
}

func NewPrompter(in io.Reader, out io.Writer, s resolve.Searcher, pageSize int) *Prompter {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Prompter{in: bufio.NewScanner(in), out: out, searcher: s, pageSize: pageSize}
}

func (p *Prompter) Decide(req resolve.Request) (resolve.Decision, error) {
	if req.SecondPass {
		fmt.Fprintf(p.out, "\nRetry resolution for: %s\n", req.Description)
		choice, err := p.readLine("'R'etry lookup, or press Enter to keep skipped: ")
		if err != nil {
			return resolve.Decision{}, err
		}
		if !strings.EqualFold(choice, "r") {
			return resolve.Decision{Skip: true}, nil
		}
	}
	p.banner(req)
	return p.searchLoop(req)
}

func (p *Prompter) banner(req resolve.Request) {
	fmt.Fprintf(p.out, "\n%s\n", rule)
	fmt.Fprintln(p.out, "SKU Issue Found")
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "Order: %s\n", req.OrderKey)
	fmt.Fprintf(p.out, "Product: %s\n", req.Description)
	if req.CurrentSKU != "" {
		fmt.Fprintf(p.out, "Current SKU: %s (not found in catalog)\n", req.CurrentSKU)
	} else {
		fmt.Fprintln(p.out, "Current SKU: (missing)")
	}
	fmt.Fprintln(p.out)
}

func (p *Prompter) searchLoop(req resolve.Request) (resolve.Decision, error) {
	for {
		term, err := p.readLine("Search term ('skip' to skip, 'qqq' to exit): ")
		if err != nil {
			return resolve.Decision{}, err
		}
		switch strings.ToLower(term) {
		case "skip":
			return resolve.Decision{Skip: true}, nil
		case "qqq":
			return resolve.Decision{}, resolve.ErrAborted
		case "":
			fmt.Fprintln(p.out, "Please enter a search term")
			continue
		}

		results, err := p.searcher.Search(context.Background(), term)
		if err != nil {
			return resolve.Decision{}, fmt.Errorf("catalog search: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintf(p.out, "No products found matching %q. Try again.\n", term)
			continue
		}

		d, retry, err := p.selectLoop(results)
		if err != nil {
			return resolve.Decision{}, err
		}
		if retry {
			continue
		}
		return d, nil
	}
}

// selectLoop paginates results until the operator selects, skips, aborts or
// asks for a new search (retry=true).
func (p *Prompter) selectLoop(results []resolve.Candidate) (d resolve.Decision, retry bool, err error) {
	total := len(results)
	page := 0
	for {
		start := page * p.pageSize
		end := start + p.pageSize
		if end > total {
			end = total
		}

		fmt.Fprintf(p.out, "\nFound %d matching product(s):\n", total)
		for i := start; i < end; i++ {
			p.printCandidate(i+1, results[i])
		}
		fmt.Fprintln(p.out)
		if total > p.pageSize {
			pages := (total + p.pageSize - 1) / p.pageSize
			fmt.Fprintf(p.out, "Page %d/%d (%d-%d of %d)\n", page+1, pages, start+1, end, total)
		}

		choice, err := p.readLine("'F'wd, 'B'ck, 'R'etry search, 'S'kip, # to select, or 'qqq': ")
		if err != nil {
			return resolve.Decision{}, false, err
		}
		switch strings.ToLower(choice) {
		case "qqq":
			return resolve.Decision{}, false, resolve.ErrAborted
		case "s":
			return resolve.Decision{Skip: true}, false, nil
		case "r":
			return resolve.Decision{}, true, nil
		case "f":
			if end < total {
				page++
			} else {
				fmt.Fprintln(p.out, "Already on the last page.")
			}
		case "b":
			if page > 0 {
				page--
			} else {
				fmt.Fprintln(p.out, "Already on the first page.")
			}
		default:
			idx, convErr := strconv.Atoi(choice)
			if convErr != nil {
				fmt.Fprintln(p.out, "Invalid input. Please enter a valid option.")
				continue
			}
			if idx < 1 || idx > total {
				fmt.Fprintln(p.out, "Invalid selection number")
				continue
			}
			sel := results[idx-1]
			fmt.Fprintf(p.out, "Selected: %s\n", sel.SKU)
			return resolve.Decision{SKU: sel.SKU}, false, nil
		}
	}
}

func (p *Prompter) printCandidate(num int, c resolve.Candidate) {
	if len(c.Stock) == 0 {
		fmt.Fprintf(p.out, "%d:   0, -, [%s] %s\n", num, c.SKU, c.Name)
		return
	}
	first := c.Stock[0]
	fmt.Fprintf(p.out, "%d: %3d, %s, [%s] %s\n", num, first.Qty, first.Location, c.SKU, c.Name)
	// up to two more locations
	extra := c.Stock[1:]
	if len(extra) > 2 {
		extra = extra[:2]
	}
	for _, s := range extra {
		fmt.Fprintf(p.out, "    %3d, %s\n", s.Qty, s.Location)
	}
}

// readLine prompts and reads one trimmed line. End of input counts as an
// operator abort so a closed stdin cannot spin the loop.
func (p *Prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", resolve.ErrAborted
	}
	return strings.TrimSpace(p.in.Text()), nil
}
