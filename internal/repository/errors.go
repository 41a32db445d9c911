package repository

import "errors"

// ErrNotFound は更新・削除の対象行が存在しないことを示す。
var ErrNotFound = errors.New("対象が見つかりません")
