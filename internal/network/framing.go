package network

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/klauspost/compress/zstd"
)

// MaxFrameSize ограничивает длину тела кадра (после сжатия).
const MaxFrameSize = 4 << 20 // 4 MiB

var (
	// ErrFrameTooLarge возвращается при кадре длиннее MaxFrameSize.
	ErrFrameTooLarge = errors.New("кадр превышает максимальный размер")

	// ErrReadTimeout сигнализирует чистый таймаут чтения: заголовок не начат,
	// поток не рассинхронизирован, чтение можно повторить.
	ErrReadTimeout = errors.New("таймаут чтения кадра")
)

// Framer кодирует кадры фида: [длина uint32 LE][zstd(JSON)].
// EncodeAll/DecodeAll потокобезопасны, один Framer обслуживает все соединения.
type Framer struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewFramer создаёт кодек кадров с zstd-сжатием.
func NewFramer() (*Framer, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("создание компрессора: %w", err)
	}

	decompressor, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize))
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("создание декомпрессора: %w", err)
	}

	return &Framer{compressor: compressor, decompressor: decompressor}, nil
}

// Encode сериализует сообщение в кадр с заголовком длины.
func (f *Framer) Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("сериализация кадра: %w", err)
	}

	data = f.compressor.EncodeAll(data, nil)
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)
	return frame, nil
}

// Decode разбирает тело кадра (без заголовка длины).
func (f *Framer) Decode(body []byte) (*Message, error) {
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	data, err := f.decompressor.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("декомпрессия кадра: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("разбор кадра: %w", err)
	}
	return &msg, nil
}

// WriteFrame кодирует и пишет кадр в поток одним вызовом Write.
func (f *Framer) WriteFrame(w io.Writer, msg *Message) (int, error) {
	frame, err := f.Encode(msg)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(frame)
	if err != nil {
		return n, fmt.Errorf("запись кадра: %w", err)
	}
	return n, nil
}

// ReadFrame читает один кадр из потока. Таймаут до первого байта заголовка
// возвращает ErrReadTimeout — поток цел, чтение можно повторить. Таймаут
// посреди кадра рассинхронизирует поток и считается фатальным.
func (f *Framer) ReadFrame(r io.Reader) (*Message, int, error) {
	header := make([]byte, 4)
	n, err := io.ReadFull(r, header)
	if err != nil {
		if isTimeout(err) && n == 0 {
			return nil, 0, ErrReadTimeout
		}
		return nil, n, err
	}

	length := binary.LittleEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, n, ErrFrameTooLarge
	}

	// Заголовок получен — кадр уже в пути. Продлеваем дедлайн, чтобы
	// короткий опросный таймаут не оборвал чтение посреди тела.
	if conn, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok {
		conn.SetReadDeadline(time.Now().Add(time.Second))
	}

	body := make([]byte, length)
	bn, err := io.ReadFull(r, body)
	if err != nil {
		return nil, n + bn, fmt.Errorf("чтение тела кадра: %w", err)
	}

	msg, err := f.Decode(body)
	if err != nil {
		return nil, n + bn, err
	}
	return msg, n + bn, nil
}

// Close освобождает ресурсы кодека.
func (f *Framer) Close() error {
	f.compressor.Close()
	f.decompressor.Close()
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
