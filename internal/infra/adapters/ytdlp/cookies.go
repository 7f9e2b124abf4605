package ytdlp

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"telegram-yt-relay/internal/domain"
)

// AuthCookies are the YouTube session cookies that matter for age gated content.
var AuthCookies = []string{
	"LOGIN_INFO", "SAPISID", "HSID", "SSID",
	"__Secure-3PAPISID", "__Secure-3PSID", "__Secure-3PSIDCC",
}

type CookieStatus struct {
	Name    string
	Domain  string
	Expires time.Time // zero for session cookies
}

func (c CookieStatus) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

type CookieReport struct {
	Total int
	Auth  []CookieStatus
}

// Inspect parses a Netscape cookies.txt file.
func Inspect(path string) (*CookieReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCookiesNotLoaded
		}
		return nil, err
	}
	defer f.Close()

	auth := make(map[string]bool, len(AuthCookies))
	for _, n := range AuthCookies {
		auth[n] = true
	}

	rep := &CookieReport{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		// #HttpOnly_ prefixes are real cookies, other # lines are comments
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		rep.Total++
		name := fields[5]
		if !auth[name] || !strings.Contains(fields[0], "youtube.com") {
			continue
		}
		st := CookieStatus{Name: name, Domain: fields[0]}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			st.Expires = time.Unix(exp, 0).UTC()
		}
		rep.Auth = append(rep.Auth, st)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	sort.Slice(rep.Auth, func(i, j int) bool { return rep.Auth[i].Name < rep.Auth[j].Name })
	return rep, nil
}
