package types

// Page は、1回のGETで取得したHTMLドキュメントです。取得後に変更されることはありません。
type Page struct {
	URL         string // リダイレクト後の最終URL (相対URL解決のベースURL)
	Body        []byte // レスポンスボディの生バイト列
	ContentType string // Content-Type ヘッダー (文字コード判定に使用)
	StatusCode  int
}

// Record は、スパイダーが出力する1件の構造化データです。
// 実装は TitleRecord と ImageURLsRecord のみで、部分的に埋まったレコードは存在しません。
type Record interface {
	isRecord()
}

// TitleRecord は、商品エントリ1件分の書籍タイトルです。
type TitleRecord struct {
	Title string `json:"title" yaml:"title"`
}

func (TitleRecord) isRecord() {}

// ImageURLsRecord は、ページ内の全サムネイル画像の絶対URLを文書順に保持します。
type ImageURLsRecord struct {
	ImageURLs []string `json:"image_urls" yaml:"image_urls"`
}

func (ImageURLsRecord) isRecord() {}

var (
	_ Record = TitleRecord{}
	_ Record = ImageURLsRecord{}
)

// ExtractionMiss は、セレクターが何も見つけられなかった商品エントリを表します。致命的ではなく、スキップされます。
type ExtractionMiss struct {
	Index  int    // 文書内での商品エントリの位置 (0始まり)
	Reason string // スキップ理由
}
