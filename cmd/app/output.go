package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatInt64s(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func printGraphView(view domain.View) {
	fmt.Printf("%d nodes, %d edges\n\n", len(view.Nodes), len(view.Edges))

	nodeRows := make([][]string, 0, len(view.Nodes))
	for _, node := range view.Nodes {
		nodeRows = append(nodeRows, []string{node.ID, strconv.Itoa(len(node.Relations))})
	}
	printTable([]string{"NODE", "RELATIONS"}, nodeRows)
	fmt.Println()

	edgeRows := make([][]string, 0, len(view.Edges))
	for _, edge := range view.Edges {
		edgeRows = append(edgeRows, []string{
			edge.ID,
			edge.Source,
			edge.Target,
			string(edge.Type),
			strings.Join(edge.TagNames, ","),
			edge.Color,
		})
	}
	printTable([]string{"EDGE", "SOURCE", "TARGET", "TYPE", "TAGS", "COLOR"}, edgeRows)
}

func printTenants(tenants []string) {
	rows := make([][]string, 0, len(tenants))
	for _, t := range tenants {
		rows = append(rows, []string{t})
	}
	printTable([]string{"TENANT"}, rows)
}

func printTagStats(stats []domain.TagStat) {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{s.TagName, strconv.Itoa(s.Count), s.Color, formatInt64s(s.RelationIDs)})
	}
	printTable([]string{"TAG", "COUNT", "COLOR", "RELATION_IDS"}, rows)
}

func printTagDetails(details domain.TagDetails) {
	printKV([][2]string{
		{"tag", details.TagName},
		{"color", details.Color},
		{"occurrences", strconv.Itoa(len(details.Occurrences))},
		{"relation_ids", formatInt64s(details.RelationIDs)},
	})
	fmt.Println()

	rows := make([][]string, 0, len(details.Occurrences))
	for _, occ := range details.Occurrences {
		rows = append(rows, []string{occ.TagID, occ.SrcDataset, occ.DstDataset, occ.TenantID})
	}
	printTable([]string{"TAG_ID", "SRC", "DST", "TENANT"}, rows)
}

func printSearchResult(result domain.SearchResult) {
	printKV([][2]string{
		{"tag_id", result.TagID},
		{"matches", strconv.Itoa(len(result.Tags))},
		{"relation_ids", formatInt64s(result.RelationIDs)},
		{"edges", strings.Join(result.EdgeIDs, ",")},
	})
}

func printImportRuns(runs []domain.ImportRun) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(run.ID), 10),
			run.Source,
			strconv.Itoa(run.TagCount),
			strconv.Itoa(run.RelationCount),
			formatTime(run.CreatedAt),
		})
	}
	printTable([]string{"ID", "SOURCE", "TAGS", "RELATIONS", "CREATED_AT"}, rows)
}
