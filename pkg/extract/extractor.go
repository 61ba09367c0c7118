package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-book-spider/pkg/types"
)

// ----------------------------------------------------------------------
// セレクター定義
// ----------------------------------------------------------------------
const (
	// productSelector はカタログの商品エントリ (article.product_pod) を指します。
	productSelector   = "article.product_pod"
	titleSelector     = "h3 a"
	thumbnailSelector = "div.image_container a img.thumbnail"
	baseSelector      = "base[href]"

	missNoTitle    = "タイトル要素が見つかりません"
	missEmptyTitle = "タイトルのテキストが空です"
	missNoImage    = "サムネイル画像のsrc属性が見つかりません"
	missInvalidSrc = "サムネイル画像のsrc属性をURLとして解釈できません"
)

// Result は1ページ分の抽出結果です。Records は文書順に並びます。
type Result struct {
	Records []types.Record
	Misses  []types.ExtractionMiss
}

func (r *Result) miss(index int, reason string) {
	r.Misses = append(r.Misses, types.ExtractionMiss{Index: index, Reason: reason})
}

// ParseDocument はページのボディを UTF-8 に変換してから goquery.Document に変換します。
// 文字コードは Content-Type ヘッダーと <meta charset> から判定されます。
func ParseDocument(page *types.Page) (*goquery.Document, error) {
	if page == nil {
		return nil, fmt.Errorf("extract.ParseDocument: page cannot be nil")
	}

	reader, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		return nil, fmt.Errorf("文字コードの変換に失敗しました (URL: %s): %w", page.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました (URL: %s): %w", page.URL, err)
	}
	return doc, nil
}

// Titles は各商品エントリのタイトルリンクのテキストを、エントリごとに1件の TitleRecord として返します。
// タイトルが見つからないエントリはレコードを出力せず、Misses に記録されます。
func Titles(page *types.Page) (Result, error) {
	doc, err := ParseDocument(page)
	if err != nil {
		return Result{}, err
	}
	return titlesFromDocument(doc), nil
}

func titlesFromDocument(doc *goquery.Document) Result {
	res := Result{Records: []types.Record{}}

	doc.Find(productSelector).Each(func(i int, s *goquery.Selection) {
		link := s.Find(titleSelector).First()
		if link.Length() == 0 {
			res.miss(i, missNoTitle)
			return
		}

		title := textUtils.NormalizeText(link.Text())
		if title == "" {
			res.miss(i, missEmptyTitle)
			return
		}
		res.Records = append(res.Records, types.TitleRecord{Title: title})
	})

	return res
}

// ImageURLs はサムネイル画像の src 属性をベースURLで絶対URLに解決し、
// ページ全体で1件の ImageURLsRecord にまとめて返します。画像が1枚もなくてもレコードは1件です。
func ImageURLs(page *types.Page) (Result, error) {
	doc, err := ParseDocument(page)
	if err != nil {
		return Result{}, err
	}

	base, err := BaseURL(page.URL, doc)
	if err != nil {
		return Result{}, err
	}
	return imageURLsFromDocument(doc, base), nil
}

func imageURLsFromDocument(doc *goquery.Document, base *url.URL) Result {
	var res Result
	urls := []string{}

	doc.Find(productSelector).Each(func(i int, s *goquery.Selection) {
		src, ok := s.Find(thumbnailSelector).First().Attr("src")
		src = strings.TrimSpace(src)
		if !ok || src == "" {
			res.miss(i, missNoImage)
			return
		}

		ref, err := url.Parse(src)
		if err != nil {
			res.miss(i, missInvalidSrc)
			return
		}
		urls = append(urls, base.ResolveReference(ref).String())
	})

	res.Records = []types.Record{types.ImageURLsRecord{ImageURLs: urls}}
	return res
}

// BaseURL はページの相対URL解決に使うベースURLを返します。
// ドキュメントに <base href> があれば、それをページURLで解決したものを優先します。
func BaseURL(pageURL string, doc *goquery.Document) (*url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースエラー (URL: %s): %w", pageURL, err)
	}
	if doc == nil {
		return base, nil
	}

	href, ok := doc.Find(baseSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return base, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		// 壊れた <base> はブラウザと同様に無視する
		return base, nil
	}
	return base.ResolveReference(ref), nil
}

// ResolveURL は ref を base に対して解決した絶対URLを返します。
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("ベースURLのパースエラー (URL: %s): %w", base, err)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("相対URLのパースエラー (URL: %s): %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
