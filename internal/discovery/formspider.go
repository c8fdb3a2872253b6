package discovery

import (
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// FormTarget is a GET search form ready for probe submissions.
type FormTarget struct {
	ActionURL   string
	Method      string
	SearchParam string
}

// searchQueries are the fixed probes submitted to every discovered search
// form. The empty and single-letter queries surface "list everything"
// behavior on many dark-web search pages.
var searchQueries = []string{"", "a", "e", "test", "admin", "market"}

// FindSearchForms locates GET search forms (or role="search") in the HTML.
// Forms containing a password input are login forms and skipped.
func FindSearchForms(htmlStr string, baseURL *url.URL) []FormTarget {
	doc, err := htmlquery.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	forms, err := htmlquery.QueryAll(doc, "//form")
	if err != nil {
		return nil
	}

	var targets []FormTarget
	for _, form := range forms {
		action := htmlquery.SelectAttr(form, "action")
		method := strings.ToLower(htmlquery.SelectAttr(form, "method"))
		if method == "" {
			method = "get"
		}
		role := htmlquery.SelectAttr(form, "role")

		if method != "get" && role != "search" {
			continue
		}

		searchParam, hasPassword := scanInputs(form)
		if hasPassword || searchParam == "" {
			continue
		}

		actionURL := baseURL.String()
		if action != "" {
			resolved, err := baseURL.Parse(action)
			if err != nil {
				continue
			}
			actionURL = resolved.String()
		}

		targets = append(targets, FormTarget{
			ActionURL:   actionURL,
			Method:      "get",
			SearchParam: searchParam,
		})
	}
	return targets
}

func scanInputs(form *html.Node) (searchParam string, hasPassword bool) {
	inputs, err := htmlquery.QueryAll(form, ".//input")
	if err != nil {
		return "", false
	}
	for _, input := range inputs {
		inputType := htmlquery.SelectAttr(input, "type")
		if inputType == "" {
			inputType = "text"
		}
		name := htmlquery.SelectAttr(input, "name")

		if inputType == "password" {
			return "", true
		}
		if (inputType == "text" || inputType == "search") && name != "" {
			searchParam = name
		}
	}
	return searchParam, false
}

// GenerateSearchURLs builds the submission URLs for each form and probe
// query.
func GenerateSearchURLs(forms []FormTarget) []string {
	var urls []string
	for _, form := range forms {
		if form.Method != "get" {
			continue
		}
		for _, query := range searchQueries {
			u, err := url.Parse(form.ActionURL)
			if err != nil {
				continue
			}
			q := u.Query()
			q.Set(form.SearchParam, query)
			u.RawQuery = q.Encode()
			urls = append(urls, u.String())
		}
	}
	return urls
}
