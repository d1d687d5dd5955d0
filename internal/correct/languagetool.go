package correct

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// LanguageTool checks text against a LanguageTool-compatible HTTP server
// (POST /v2/check). Only the first replacement of each match is applied.
type LanguageTool struct {
	baseURL  string
	language string
	http     *http.Client
}

func NewLanguageTool(baseURL, language string) *LanguageTool {
	if language == "" {
		language = "en-US"
	}
	return &LanguageTool{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type ltMatch struct {
	Offset       int `json:"offset"`
	Length       int `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
}

func (lt *LanguageTool) Check(ctx context.Context, text string) (Result, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", lt.language)
	req, err := http.NewRequestWithContext(ctx, "POST", lt.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := lt.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Result{}, fmt.Errorf("languagetool status %d", resp.StatusCode)
	}
	var out struct {
		Matches []ltMatch `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	corrected := applyMatches(text, out.Matches)
	return Result{HasChanges: corrected != text, Corrected: corrected}, nil
}

// applyMatches splices the suggested replacements into the text. Offsets
// count characters, not bytes, so the splice works on runes. Applying
// from the back keeps earlier offsets valid.
func applyMatches(text string, matches []ltMatch) string {
	if len(matches) == 0 {
		return text
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Offset > matches[j].Offset })
	runes := []rune(text)
	for _, m := range matches {
		if len(m.Replacements) == 0 {
			continue
		}
		if m.Offset < 0 || m.Length < 0 || m.Offset+m.Length > len(runes) {
			continue
		}
		repl := []rune(m.Replacements[0].Value)
		rest := append(repl, runes[m.Offset+m.Length:]...)
		runes = append(runes[:m.Offset], rest...)
	}
	return string(runes)
}
