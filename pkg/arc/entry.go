package arc

// Entry はアーカイブ内の1つのデータを表します
type Entry struct {
	Path   string
	Offset uint64
	Size   uint64

	// Extra は形式固有の情報です（エントリごとの鍵、先頭に付加するバイト列など）
	Extra any
}

// End は Offset+Size を返します
func (e *Entry) End() uint64 {
	return e.Offset + e.Size
}

// Meta はアーカイブのディレクトリです。Entries は格納順を保ちます。
type Meta struct {
	Entries []*Entry

	// Extra は形式固有の情報です（選択された鍵など）
	Extra any
}

// Last は最後のエントリを返します。空の場合は nil です。
func (m *Meta) Last() *Entry {
	if m == nil || len(m.Entries) == 0 {
		return nil
	}
	return m.Entries[len(m.Entries)-1]
}
