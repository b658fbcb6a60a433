package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/saigo112/gas-camping-reservation/internal/model"
)

// Table はシートの読み取りスナップショットです
// 行スライスは列名経由で参照します（列位置はヘッダーから毎回解決する）
type Table struct {
	Header []string
	Rows   [][]string // Rows[0] がシートの2行目
	cols   map[string]int
}

// NewTable は読み取り結果からスナップショットを組み立てます
func NewTable(header []string, rows [][]string) *Table {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	return &Table{Header: header, Rows: rows, cols: cols}
}

// HasColumn は列が存在するかを返します
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Cell は行スライスから列名で値を取り出します。列がない・行が短い場合は空文字です
func (t *Table) Cell(row []string, column string) string {
	i, ok := t.cols[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// SheetStore は表形式ストアへの操作境界です
// 実体はスプレッドシート（xlsxワークブックの1シート）で、行番号は1始まり・
// 1行目がヘッダーです
type SheetStore interface {
	// EnsureColumns は不足列を末尾に追加し、最新のヘッダー行を返します
	// 既存列の並びは変更しません
	EnsureColumns(ctx context.Context, required []string) ([]string, error)
	ReadAll(ctx context.Context) (*Table, error)
	// InsertRows は position 行目の直前に rows をまとめて挿入します
	InsertRows(ctx context.Context, position int, rows [][]interface{}) error
	UpdateCell(ctx context.Context, row int, column string, value interface{}) error
	// SortByColumnDesc はデータ領域全体を指定列の日時降順で並べ替えます
	SortByColumnDesc(ctx context.Context, column string) error
	// TextFormatColumn は列全体を文字列書式にします（予約ID・電話番号の0落ち防止）
	TextFormatColumn(ctx context.Context, column string) error
}

// Workbook はxlsxファイル1つを共有するハンドルです
// 複数シート（予約シートとメール設定シート）が同じファイルに同居するため、
// 書き込みはワークブック単位で直列化します
type Workbook struct {
	path string
	file *excelize.File
	mu   sync.Mutex
}

// OpenWorkbook はワークブックを開きます。ファイルがないのは設定エラー（致命的）です
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ワークブックを開けません %s: %w", path, err)
	}
	return &Workbook{path: path, file: f}, nil
}

// Close はワークブックを閉じます
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Sheet は名前でシートアダプタを取得します。シートがないのは設定エラーです
func (w *Workbook) Sheet(name string) (*ExcelSheet, error) {
	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("シート索引の取得に失敗 %s: %w", name, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("シートが見つかりません: %s", name)
	}
	return &ExcelSheet{wb: w, name: name}, nil
}

// ExcelSheet は SheetStore のexcelize実装です
// 各ミューテーションは即座にファイルへ保存します（部分コミットのロールバックはしない。
// 再実行はキー存在チェックにより安全）
type ExcelSheet struct {
	wb   *Workbook
	name string
}

var _ SheetStore = (*ExcelSheet)(nil)

func (s *ExcelSheet) EnsureColumns(ctx context.Context, required []string) ([]string, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return nil, fmt.Errorf("ヘッダーの読み取りに失敗: %w", err)
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	if len(header) == 0 {
		values := make([]interface{}, len(required))
		for i, h := range required {
			values[i] = h
		}
		if err := s.wb.file.SetSheetRow(s.name, "A1", &values); err != nil {
			return nil, fmt.Errorf("ヘッダーの書き込みに失敗: %w", err)
		}
		if err := s.wb.file.Save(); err != nil {
			return nil, fmt.Errorf("保存に失敗: %w", err)
		}
		return append([]string(nil), required...), nil
	}

	existing := make(map[string]bool, len(header))
	for _, h := range header {
		existing[h] = true
	}
	var missing []string
	for _, h := range required {
		if !existing[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return header, nil
	}
	for i, h := range missing {
		cell, err := excelize.CoordinatesToCellName(len(header)+i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := s.wb.file.SetCellValue(s.name, cell, h); err != nil {
			return nil, fmt.Errorf("列追加に失敗 %s: %w", h, err)
		}
	}
	if err := s.wb.file.Save(); err != nil {
		return nil, fmt.Errorf("保存に失敗: %w", err)
	}
	return append(header, missing...), nil
}

func (s *ExcelSheet) ReadAll(ctx context.Context) (*Table, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return nil, fmt.Errorf("シートの読み取りに失敗: %w", err)
	}
	if len(rows) == 0 {
		return NewTable(nil, nil), nil
	}
	return NewTable(rows[0], rows[1:]), nil
}

func (s *ExcelSheet) InsertRows(ctx context.Context, position int, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	if err := s.wb.file.InsertRows(s.name, position, len(rows)); err != nil {
		return fmt.Errorf("行挿入に失敗: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, position+i)
		if err != nil {
			return err
		}
		r := row
		if err := s.wb.file.SetSheetRow(s.name, cell, &r); err != nil {
			return fmt.Errorf("行書き込みに失敗 %d行目: %w", position+i, err)
		}
	}
	if err := s.wb.file.Save(); err != nil {
		return fmt.Errorf("保存に失敗: %w", err)
	}
	return nil
}

func (s *ExcelSheet) UpdateCell(ctx context.Context, row int, column string, value interface{}) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	col, err := s.columnIndex(column)
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellValue(s.name, cell, value); err != nil {
		return fmt.Errorf("セル更新に失敗 %s: %w", cell, err)
	}
	if err := s.wb.file.Save(); err != nil {
		return fmt.Errorf("保存に失敗: %w", err)
	}
	return nil
}

func (s *ExcelSheet) SortByColumnDesc(ctx context.Context, column string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return fmt.Errorf("シートの読み取りに失敗: %w", err)
	}
	if len(rows) <= 2 {
		return nil
	}
	header := rows[0]
	col, err := s.columnIndexIn(header, column)
	if err != nil {
		return err
	}

	// 幅をヘッダーに揃えてから並べ替える。短い行をそのまま書き戻すと
	// 並べ替え前の別行のセルが残ってしまう
	data := make([][]string, len(rows)-1)
	for i, row := range rows[1:] {
		padded := make([]string, len(header))
		copy(padded, row)
		data[i] = padded
	}

	sort.SliceStable(data, func(i, j int) bool {
		ti := model.ParseSheetTime(data[i][col])
		tj := model.ParseSheetTime(data[j][col])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return data[i][col] > data[j][col]
	})

	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := s.wb.file.SetSheetRow(s.name, cell, &values); err != nil {
			return fmt.Errorf("並べ替え結果の書き込みに失敗 %d行目: %w", i+2, err)
		}
	}
	if err := s.wb.file.Save(); err != nil {
		return fmt.Errorf("保存に失敗: %w", err)
	}
	return nil
}

func (s *ExcelSheet) TextFormatColumn(ctx context.Context, column string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	col, err := s.columnIndex(column)
	if err != nil {
		return err
	}
	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return err
	}
	if len(rows) <= 1 {
		return nil
	}
	// NumFmt 49 = 文字列書式 "@"
	styleID, err := s.wb.file.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("書式の作成に失敗: %w", err)
	}
	top, err := excelize.CoordinatesToCellName(col+1, 2)
	if err != nil {
		return err
	}
	bottom, err := excelize.CoordinatesToCellName(col+1, len(rows))
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellStyle(s.name, top, bottom, styleID); err != nil {
		return fmt.Errorf("書式設定に失敗: %w", err)
	}
	if err := s.wb.file.Save(); err != nil {
		return fmt.Errorf("保存に失敗: %w", err)
	}
	return nil
}

func (s *ExcelSheet) columnIndex(column string) (int, error) {
	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return 0, fmt.Errorf("ヘッダーの読み取りに失敗: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("ヘッダー行がありません: %s", s.name)
	}
	return s.columnIndexIn(rows[0], column)
}

func (s *ExcelSheet) columnIndexIn(header []string, column string) (int, error) {
	for i, h := range header {
		if h == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("列が見つかりません: %s", column)
}

// ParseRowTime はテスト等で使う補助です。列の日時セルを読み戻します
func (t *Table) ParseRowTime(row []string, column string) time.Time {
	return model.ParseSheetTime(t.Cell(row, column))
}
