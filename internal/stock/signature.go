package stock

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Signer は署名付きAPI向けのリクエスト署名を生成する。
// 同じパラメータとタイムスタンプからは常に同じ署名を返す純粋関数として振る舞う。
type Signer struct {
	salt      string
	clientKey string
}

// NewSigner はSignerを生成する。
func NewSigner(salt, clientKey string) *Signer {
	return &Signer{salt: salt, clientKey: clientKey}
}

// Sign はパラメータとunixタイムスタンプから署名を生成する。
//
// GETの場合はnilと空文字の値を除外し、残りを文字列化してから正規化する。
// POSTの場合はパラメータをそのまま使う。
// 正規化したコンパクトJSONにソルトとタイムスタンプを連結してMD5の16進表記を返す。
// 署名できない型の値が含まれる場合はpanicする。
func (s *Signer) Sign(params map[string]any, timestamp, method string) string {
	target := params
	if strings.EqualFold(method, http.MethodGet) {
		target = filterGetParams(params)
	}

	var buf bytes.Buffer
	writeCanonical(&buf, target)
	return md5Hex(buf.String() + s.salt + timestamp)
}

// XSign はx-signヘッダの値を生成する。形式は "md5(timestamp,clientKey),timestamp"。
func (s *Signer) XSign(timestamp string) string {
	return md5Hex(timestamp+","+s.clientKey) + "," + timestamp
}

// SignedQuery は署名(s)とタイムスタンプ(t)を付与したクエリパラメータを返す。
// GETで除外されたパラメータはクエリにも含めない。
func (s *Signer) SignedQuery(params map[string]any, timestamp, method string) url.Values {
	q := url.Values{}
	for k, v := range filterGetParams(params) {
		q.Set(k, v.(string))
	}
	q.Set("s", s.Sign(params, timestamp, method))
	q.Set("t", timestamp)
	return q
}

func filterGetParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		str := stringify(v)
		if str == "" {
			continue
		}
		out[k] = str
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// writeCanonical はキーを再帰的にソートしたコンパクトJSONを書き込む。
// 配列は順序を保ったまま要素ごとに正規化する。
func writeCanonical(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		writeCanonical(buf, m)
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, e)
		}
		buf.WriteByte(']')
	case string:
		writeString(buf, t)
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		buf.WriteString(t.String())
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(t, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		panic(fmt.Sprintf("stock: unsupported signature value type %T", v))
	}
}

// writeString はHTMLエスケープなしでJSON文字列を書き込む。
func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		panic(fmt.Sprintf("stock: encode signature string: %v", err))
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}
