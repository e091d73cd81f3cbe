package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// Style is the single caption style of the ASS track.
type Style struct {
	PlayResX        int    `toml:"play_res_x" validate:"gt=0"`
	PlayResY        int    `toml:"play_res_y" validate:"gt=0"`
	FontName        string `toml:"font_name" validate:"required"`
	FontSize        int    `toml:"font_size" validate:"gt=0"`
	PrimaryColour   string `toml:"primary_colour"`
	SecondaryColour string `toml:"secondary_colour"`
	OutlineColour   string `toml:"outline_colour"`
	BackColour      string `toml:"back_colour"`
	Bold            bool   `toml:"bold"`
	Outline         int    `toml:"outline" validate:"gte=0"`
	Shadow          int    `toml:"shadow" validate:"gte=0"`
	Alignment       int    `toml:"alignment" validate:"gte=1,lte=9"`
	MarginL         int    `toml:"margin_l" validate:"gte=0"`
	MarginR         int    `toml:"margin_r" validate:"gte=0"`
	MarginV         int    `toml:"margin_v" validate:"gte=0"`
}

// DefaultStyle returns the vertical-video caption style: bold white Arial
// on a 1080x1920 canvas, bottom-centred and raised into the frame.
func DefaultStyle() Style {
	return Style{
		PlayResX:        1080,
		PlayResY:        1920,
		FontName:        "Arial",
		FontSize:        64,
		PrimaryColour:   "&H00FFFFFF",
		SecondaryColour: "&H000000FF",
		OutlineColour:   "&H00000000",
		BackColour:      "&H64000000",
		Bold:            true,
		Outline:         2,
		Shadow:          0,
		Alignment:       2,
		MarginL:         10,
		MarginR:         10,
		MarginV:         1200,
	}
}

// WriteASS writes the style header followed by one Dialogue line per event.
func WriteASS(w io.Writer, events []Event, style Style) error {
	bw := bufio.NewWriter(w)

	bold := 0
	if style.Bold {
		bold = 1
	}
	fmt.Fprintf(bw, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\n\n", style.PlayResX, style.PlayResY)
	fmt.Fprint(bw, "[V4+ Styles]\n")
	fmt.Fprint(bw, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%d,%d,%d,%d,%d,%d,1\n\n",
		style.FontName, style.FontSize,
		style.PrimaryColour, style.SecondaryColour, style.OutlineColour, style.BackColour,
		bold, style.Outline, style.Shadow, style.Alignment,
		style.MarginL, style.MarginR, style.MarginV,
	)
	fmt.Fprint(bw, "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, e := range events {
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTime(e.Start), assTime(e.End), e.Markup)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return nil
}

// assTime converts seconds to ASS time format H:MM:SS.cc.
func assTime(seconds float64) string {
	cs := int64(math.Round(math.Max(0, seconds) * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}
