package arc

// Match は認識に成功した形式です
type Match struct {
	ID      string
	Decoder Decoder
}

// Guess は登録済みのすべての形式で f の認識を試します。
// 1つだけ認識した場合はその形式を返します。
// 認識した形式がない場合は ErrNotRecognized、複数の場合は *AmbiguousFormatError を返します。
func Guess(reg *Registry, f *File, logger Logger) (Match, error) {
	return GuessAmong(reg, reg.Formats(), f, logger)
}

// GuessAmong は ids の形式だけで認識を試します。未登録のIDは無視されます。
func GuessAmong(reg *Registry, ids []string, f *File, logger Logger) (Match, error) {
	logger = OrNop(logger)

	var matches []Match
	for _, id := range ids {
		d, err := reg.Create(id)
		if err != nil {
			continue
		}
		if d.IsRecognized(f) {
			logger.Printf("Trying %s: recognized\n", id)
			matches = append(matches, Match{ID: id, Decoder: d})
		} else {
			logger.Printf("Trying %s: not recognized\n", id)
		}
	}

	switch len(matches) {
	case 0:
		return Match{}, ErrNotRecognized
	case 1:
		return matches[0], nil
	default:
		formats := make([]string, len(matches))
		for i, m := range matches {
			formats[i] = m.ID
		}
		return Match{}, &AmbiguousFormatError{Formats: formats}
	}
}
