package storage

const schema = `
-- Key/value settings of the collection, e.g. the current model.
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Models describe which fields a note has and which cards it produces.
CREATE TABLE IF NOT EXISTS models (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS field_models (
    id TEXT PRIMARY KEY,
    model_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    required INTEGER NOT NULL DEFAULT 0,
    is_unique INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(model_id) REFERENCES models(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS card_models (
    id TEXT PRIMARY KEY,
    model_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    qformat TEXT NOT NULL DEFAULT '',
    aformat TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(model_id) REFERENCES models(id) ON DELETE CASCADE
);

-- Timestamps are unix nanoseconds.
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    model_id TEXT NOT NULL,
    created INTEGER NOT NULL,
    modified INTEGER NOT NULL,
    tags TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(model_id) REFERENCES models(id)
);

-- chksum is only filled for unique fields.
CREATE TABLE IF NOT EXISTS fields (
    id TEXT PRIMARY KEY,
    note_id TEXT NOT NULL,
    field_model_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    value TEXT NOT NULL,
    chksum TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS ix_fields_note ON fields (note_id);
CREATE INDEX IF NOT EXISTS ix_fields_chksum ON fields (field_model_id, chksum);

-- type and queue: 0 learning, 1 review, 2 new.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    note_id TEXT NOT NULL,
    card_model_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    created INTEGER NOT NULL,
    modified INTEGER NOT NULL,
    due INTEGER NOT NULL,
    type INTEGER NOT NULL DEFAULT 2,
    queue INTEGER NOT NULL DEFAULT 2,
    reps INTEGER NOT NULL DEFAULT 0,
    successive INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    interval REAL NOT NULL DEFAULT 0,
    factor REAL NOT NULL DEFAULT 0,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    question TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS ix_cards_note ON cards (note_id);
CREATE INDEX IF NOT EXISTS ix_cards_queue_due ON cards (queue, due);

-- Tombstones of deleted notes.
CREATE TABLE IF NOT EXISTS notes_deleted (
    note_id TEXT PRIMARY KEY,
    deleted INTEGER NOT NULL
);
`
