// package formatter exports a venue's request queue to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// QueueExport is a point in time copy of one owner's requests.
type QueueExport struct {
	OwnerID     string               `json:"owner_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Requests    []models.RequestSong `json:"requests"`
}

// QueueMetadata summarizes a [QueueExport].
type QueueMetadata struct {
	OwnerID     string    `json:"owner_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Pending     int       `json:"pending"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	NowPlaying  string    `json:"now_playing,omitempty"`
}

// NewQueueExport copies rows into an export stamped with at.
func NewQueueExport(ownerID string, rows []models.RequestSong, at time.Time) *QueueExport {
	return &QueueExport{OwnerID: ownerID, GeneratedAt: at.UTC(), Requests: slices.Clone(rows)}
}

// ByStatus returns the requests with status, oldest first.
func (e *QueueExport) ByStatus(status models.Status) []models.RequestSong {
	var rows []models.RequestSong
	for _, r := range e.Requests {
		if r.Status == status {
			rows = append(rows, r)
		}
	}
	slices.SortStableFunc(rows, func(a, b models.RequestSong) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return rows
}

// NowPlaying returns the playing request, if any.
func (e *QueueExport) NowPlaying() (models.RequestSong, bool) {
	for _, r := range e.Requests {
		if r.IsPlaying && r.Status == models.StatusApproved {
			return r, true
		}
	}
	return models.RequestSong{}, false
}

// Metadata summarizes the export.
func (e *QueueExport) Metadata() QueueMetadata {
	m := QueueMetadata{
		OwnerID:     e.OwnerID,
		GeneratedAt: e.GeneratedAt,
		Pending:     len(e.ByStatus(models.StatusPending)),
		Approved:    len(e.ByStatus(models.StatusApproved)),
		Rejected:    len(e.ByStatus(models.StatusRejected)),
	}
	if r, ok := e.NowPlaying(); ok {
		m.NowPlaying = r.SongTitle
	}
	return m
}

// ExportToCSV converts a QueueExport to CSV with columns: ID, Status, Playing, Title, Artist, Play Time, Customer, Requested At
func ExportToCSV(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Status", "Playing", "Title", "Artist", "Play Time", "Customer", "Requested At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, status := range models.Statuses {
		for _, r := range export.ByStatus(status) {
			record := []string{
				strconv.FormatInt(r.ID, 10),
				string(r.Status),
				strconv.FormatBool(r.IsPlaying),
				r.SongTitle,
				r.ArtistName,
				r.PlayTime,
				r.CustomerID,
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a QueueExport to Markdown with an optional cover image for the playing song
func ExportToMarkdown(export *QueueExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Queue for %s\n\n", export.OwnerID)
	fmt.Fprintf(&buf, "_Generated %s_\n\n", export.GeneratedAt.Format(time.RFC1123))

	if r, ok := export.NowPlaying(); ok {
		buf.WriteString("## Now Playing\n\n")
		if imageFilename != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
		}
		fmt.Fprintf(&buf, "**%s** by %s [%s]\n\n", r.SongTitle, r.ArtistName, r.PlayTime)
	}

	sections := []struct {
		title  string
		status models.Status
	}{
		{"Play Queue", models.StatusApproved},
		{"Pending Review", models.StatusPending},
		{"Rejected", models.StatusRejected},
	}
	for _, section := range sections {
		rows := export.ByStatus(section.status)
		fmt.Fprintf(&buf, "## %s (%d)\n\n", section.title, len(rows))
		for i, r := range rows {
			marker := ""
			if r.IsPlaying {
				marker = " ▶"
			}
			fmt.Fprintf(&buf, "%d. %s - %s [%s]%s\n", i+1, r.ArtistName, r.SongTitle, r.PlayTime, marker)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts the play queue of a QueueExport to plain text
func ExportToText(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	queue := export.ByStatus(models.StatusApproved)
	fmt.Fprintf(&buf, "Venue: %s\n", export.OwnerID)
	if r, ok := export.NowPlaying(); ok {
		fmt.Fprintf(&buf, "Now playing: %s - %s\n", r.ArtistName, r.SongTitle)
	}
	fmt.Fprintf(&buf, "Queued: %d (%s)\n\n", len(queue), TotalPlayTime(queue))

	for i, r := range queue {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, r.ArtistName, r.SongTitle, r.PlayTime)
	}

	return buf.Bytes(), nil
}

// TotalPlayTime sums the play times of rows, skipping values that do not parse.
func TotalPlayTime(rows []models.RequestSong) string {
	var seconds int
	for _, r := range rows {
		if s, err := shared.ParsePlayTime(r.PlayTime); err == nil {
			seconds += s
		}
	}
	return shared.FormatPlayTime(seconds * 1000)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates an indented JSON summary of the export
func ToMetadataJSON(export *QueueExport) ([]byte, error) {
	return json.MarshalIndent(export.Metadata(), "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	RequestsFile string
	MetadataFile string
}

// WriteCSVExport writes {base}_requests.csv and {base}_metadata.json.
//
// The base path defaults to the owner ID.
func WriteCSVExport(export *QueueExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.OwnerID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	requestsFile := baseFilepath + "_requests.csv"
	if err := os.WriteFile(requestsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		RequestsFile: requestsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warnings   []error
}

// WriteMarkdownExport exports the queue to {dir}/README.md, defaulting dir to the owner ID.
//
// When download is true the playing song's cover is saved as {dir}/cover.jpg.
// A failed download is recorded as a warning and the export continues without it.
func WriteMarkdownExport(export *QueueExport, outputDir string, download bool) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.OwnerID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if playing, ok := export.NowPlaying(); ok && download && playing.CoverImage != "" {
		imageData, err := DownloadImage(playing.CoverImage)
		if err != nil {
			result.Warnings = append(result.Warnings, err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("failed to save cover image: %w", err))
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports the play queue to plain text.
//
// Defaults to {owner}_queue.txt as the filename.
func WriteTextExport(export *QueueExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_queue.txt", export.OwnerID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
