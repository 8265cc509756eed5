package resolver

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tgrayson/streamtv/internal/models"
)

// resolveArchiveOrg rewrites details-page URLs to direct download URLs
// and injects the configured session cookies so FFmpeg reuses them.
func (r *Resolver) resolveArchiveOrg(_ context.Context, item *models.MediaItem) (*ResolvedStream, error) {
	streamURL, err := archiveDownloadURL(item.URL)
	if err != nil {
		return nil, err
	}

	stream := &ResolvedStream{URL: streamURL}
	if r.cfg.ArchiveOrg.UseAuthentication {
		if r.cfg.ArchiveOrg.CookiesFile == "" {
			return nil, fmt.Errorf("archive.org authentication enabled without cookies file: %w", ErrAuthRequired)
		}
		cookie, err := netscapeCookieHeader(r.cfg.ArchiveOrg.CookiesFile, "archive.org")
		if err != nil {
			return nil, fmt.Errorf("loading archive.org cookies: %w", err)
		}
		if cookie != "" {
			stream.Headers = map[string]string{"Cookie": cookie}
		}
	}
	return stream, nil
}

// archiveDownloadURL maps …/details/{identifier}/{filename} to the
// direct …/download/… form. Download URLs pass through untouched.
func archiveDownloadURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing archive.org url: %w", err)
	}

	if strings.HasPrefix(u.Path, "/download/") {
		return raw, nil
	}

	rest, ok := strings.CutPrefix(u.Path, "/details/")
	if !ok {
		return "", fmt.Errorf("archive.org url %s is neither details nor download form", raw)
	}

	identifier, filename, ok := strings.Cut(rest, "/")
	if !ok || identifier == "" || filename == "" {
		return "", fmt.Errorf("archive.org details url %s names no file", raw)
	}
	return "https://archive.org/download/" + identifier + "/" + filename, nil
}

// netscapeCookieHeader reads a Netscape-format cookies file and builds a
// Cookie header value for the given domain suffix.
func netscapeCookieHeader(path, domain string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var pairs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// domain, include-subdomains, path, secure, expiry, name, value
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		cookieDomain := strings.TrimPrefix(fields[0], ".")
		if cookieDomain != domain && !strings.HasSuffix(cookieDomain, "."+domain) {
			continue
		}
		pairs = append(pairs, fields[5]+"="+fields[6])
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(pairs, "; "), nil
}
