package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type dailyStepParquetRow struct {
	Date   string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Source string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Steps  float64 `parquet:"name=steps, type=DOUBLE"`
}

// MarshalDailyParquet encodes rows as an in-memory parquet file.
func MarshalDailyParquet(rows []DailyStepRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := encodeDailyParquet(fw, rows); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func encodeDailyParquet(fw source.ParquetFile, rows []DailyStepRow) error {
	pw, err := writer.NewParquetWriter(fw, new(dailyStepParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := dailyStepParquetRow{
			Date:   r.Date,
			Source: r.Source,
			Steps:  r.Steps,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}
